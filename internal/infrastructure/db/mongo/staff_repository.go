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

const collectionStaff = "hospital_users"

// StaffRepository reads staff members. Usernames are unique per owning
// account only.
type StaffRepository struct {
	col *mongo.Collection
}

func NewStaffRepository(db *mongo.Database) *StaffRepository {
	return &StaffRepository{col: db.Collection(collectionStaff)}
}

type mongoStaff struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	TenantID     string             `bson:"tenant_id"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	IsActive     bool               `bson:"is_active"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (m *mongoStaff) toDomain() *domain.StaffMember {
	return &domain.StaffMember{
		ID:           m.ID.Hex(),
		AccountID:    m.TenantID,
		Username:     m.Username,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domain.StaffRole(m.Role),
		Active:       m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
}

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	oid, err := objectID(id, domain.ErrStaffNotFound)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoStaff
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		if isNotFound(err) {
			return nil, domain.ErrStaffNotFound
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return m.toDomain(), nil
}

// FindByUsername looks a staff member up by username, scoped to accountID
// when it is non-empty. Without a scope, a username shared by staff of
// different accounts yields domain.ErrAmbiguousStaff.
func (r *StaffRepository) FindByUsername(ctx context.Context, username, accountID string) (*domain.StaffMember, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"username": username}
	if accountID != "" {
		filter["tenant_id"] = accountID
	}

	cur, err := r.col.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, fmt.Errorf("find staff: %w", err)
	}
	var found []mongoStaff
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode staff: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, domain.ErrStaffNotFound
	case 1:
		return found[0].toDomain(), nil
	default:
		return nil, domain.ErrAmbiguousStaff
	}
}

// EnsureIndexes creates the per-account unique username index.
func (r *StaffRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
