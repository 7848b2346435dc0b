package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

const collectionAccounts = "accounts"

// AccountRepository reads tenant owner accounts from the control database.
// Accounts are written by the registration service.
type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(collectionAccounts)}
}

type mongoAccount struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	CompanyName  string             `bson:"company_name"`
	TenantDBName string             `bson:"tenant_db_name"`
	TenantDBURL  string             `bson:"tenant_db_url,omitempty"`
	IsActive     bool               `bson:"is_active"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m *mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:           m.ID.Hex(),
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CompanyName:  m.CompanyName,
		TenantID:     m.TenantDBName,
		PartitionURI: m.TenantDBURL,
		Active:       m.IsActive,
		Role:         domain.AccountRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := objectID(id, domain.ErrAccountNotFound)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail matches the stored lowercase email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

// PartitionURI returns the dedicated server URI of tenantID's partition, or
// an empty string when the tenant lives on the shared tenant server.
func (r *AccountRepository) PartitionURI(ctx context.Context, tenantID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoAccount
	opts := options.FindOne().SetProjection(bson.M{"tenant_db_url": 1})
	err := r.col.FindOne(ctx, bson.M{"tenant_db_name": tenantID}, opts).Decode(&m)
	if err != nil {
		if isNotFound(err) {
			return "", domain.ErrAccountNotFound
		}
		return "", fmt.Errorf("find partition uri: %w", err)
	}
	return m.TenantDBURL, nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoAccount
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		if isNotFound(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return m.toDomain(), nil
}

// EnsureIndexes creates the unique indexes on email and partition name.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant_db_name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}
