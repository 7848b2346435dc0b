package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

const collectionSubscriptions = "subscriptions"

type SubscriptionRepository struct {
	col *mongo.Collection
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection(collectionSubscriptions)}
}

type mongoSubscription struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	ProductSlug string             `bson:"product_slug"`
	PlanType    string             `bson:"plan_type"`
	Status      string             `bson:"status"`
	StartDate   time.Time          `bson:"start_date"`
	EndDate     time.Time          `bson:"end_date"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (m *mongoSubscription) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:          m.ID.Hex(),
		AccountID:   m.UserID,
		ProductArea: domain.ProductArea(m.ProductSlug),
		PlanKind:    domain.PlanKind(m.PlanType),
		Status:      domain.SubscriptionStatus(m.Status),
		StartDate:   m.StartDate.UTC(),
		EndDate:     m.EndDate.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func (r *SubscriptionRepository) FindByAccountAndArea(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoSubscription
	err := r.col.FindOne(ctx, bson.M{"user_id": accountID, "product_slug": string(area)}).Decode(&m)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return m.toDomain(), nil
}

// ListByAccount returns every subscription of accountID ordered by product.
func (r *SubscriptionRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "product_slug", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"user_id": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	var docs []mongoSubscription
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	out := make([]*domain.Subscription, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

// MarkExpired flips the subscription to expired only while it is still
// active. It reports whether this call performed the transition.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id string, at time.Time) (bool, error) {
	oid, err := objectID(id, domain.ErrSubscriptionNotFound)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(domain.SubscriptionActive)},
		bson.M{"$set": bson.M{"status": string(domain.SubscriptionExpired), "updated_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("expire subscription: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ExpireOverdue expires every active subscription whose end date is not
// after now and returns how many were changed.
func (r *SubscriptionRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		bson.M{"status": string(domain.SubscriptionActive), "end_date": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"status": string(domain.SubscriptionExpired), "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("expire overdue subscriptions: %w", err)
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the (account, product) uniqueness index and the index
// backing the expiry sweep.
func (r *SubscriptionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}},
	})
	return err
}
