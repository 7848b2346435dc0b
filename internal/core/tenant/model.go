// Package tenant maps tenant identifiers to cached handles on their isolated
// data partitions.
package tenant

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrUnregisteredModel = errors.New("model not registered")
	ErrConnectTimeout    = errors.New("tenant connection timed out")
	ErrEmptyTenant       = errors.New("tenant id is required")
	ErrRegistryClosed    = errors.New("tenant registry is closed")
	ErrNoDocuments       = errors.New("document not found")
)

// Model is a named, typed accessor for one collection of a single tenant's
// partition. It never reaches any other partition.
type Model interface {
	Name() string
	InsertOne(ctx context.Context, doc any) error
	FindOne(ctx context.Context, filter bson.M, out any) error
	Find(ctx context.Context, filter bson.M, out any) error
	UpdateOne(ctx context.Context, filter, update bson.M) (int64, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

// Partition is an established connection to one tenant's data store.
type Partition interface {
	// Model binds name to collection inside this partition.
	Model(name, collection string) Model
	// Healthy turns false once the underlying link has errored or disconnected.
	Healthy() bool
	Close(ctx context.Context) error
}

// Dialer establishes a new Partition for tenantID.
type Dialer interface {
	Dial(ctx context.Context, tenantID string) (Partition, error)
}

// DefaultCatalog is the fixed set of accessors registered on every handle,
// keyed by accessor name with the backing collection as value.
var DefaultCatalog = map[string]string{
	// core
	"Patient":     "patients",
	"Appointment": "appointments",
	"Staff":       "staffs",
	"Settings":    "settings",
	// pharmacy
	"Inventory":     "inventories",
	"Sale":          "sales",
	"Supplier":      "suppliers",
	"StockMovement": "stockmovements",
	"PurchaseOrder": "purchaseorders",
	// accounting
	"Invoice":       "invoices",
	"Payment":       "payments",
	"Revenue":       "revenues",
	"Expense":       "expenses",
	"AccountLedger": "accountledgers",
	"TaxRecord":     "taxrecords",
}
