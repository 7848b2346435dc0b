package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/medcloud/tenantgate/internal/core/tenant"
)

// URIResolver yields the dedicated server URI of a tenant partition, or an
// empty string when the tenant lives on the shared tenant server.
type URIResolver interface {
	PartitionURI(ctx context.Context, tenantID string) (string, error)
}

// DialerConfig holds the shared tenant server URI and per-partition pool bounds.
type DialerConfig struct {
	URI         string
	MaxPoolSize uint64
	MinPoolSize uint64
}

// PartitionDialer opens one client per tenant. Each partition is the database
// named after the tenant id, with its own connection pool.
type PartitionDialer struct {
	cfg  DialerConfig
	uris URIResolver
	log  zerolog.Logger
}

func NewPartitionDialer(cfg DialerConfig, uris URIResolver, log zerolog.Logger) *PartitionDialer {
	return &PartitionDialer{cfg: cfg, uris: uris, log: log}
}

// Dial connects and pings the tenant's server before returning the partition.
func (d *PartitionDialer) Dial(ctx context.Context, tenantID string) (tenant.Partition, error) {
	uri := d.cfg.URI
	if d.uris != nil {
		custom, err := d.uris.PartitionURI(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("resolve partition uri: %w", err)
		}
		if custom != "" {
			uri = custom
		}
	}

	p := &Partition{
		tenantID: tenantID,
		log:      d.log.With().Str("tenant_id", tenantID).Logger(),
	}
	opts := clientOptions(Config{
		URI:         uri,
		MaxPoolSize: d.cfg.MaxPoolSize,
		MinPoolSize: d.cfg.MinPoolSize,
	}).SetServerMonitor(p.monitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	p.client = client
	p.db = client.Database(tenantID)
	return p, nil
}

// Partition is a tenant database reached through a dedicated client. It turns
// unhealthy after a failed server heartbeat or a network error on any
// operation and is never revived; the registry replaces it instead.
type Partition struct {
	tenantID string
	client   *mongo.Client
	db       *mongo.Database
	broken   atomic.Bool
	log      zerolog.Logger
}

func (p *Partition) Model(name, collection string) tenant.Model {
	return &collectionModel{name: name, col: p.db.Collection(collection), p: p}
}

func (p *Partition) Healthy() bool { return !p.broken.Load() }

func (p *Partition) Close(ctx context.Context) error {
	p.broken.Store(true)
	if p.client == nil {
		return nil
	}
	return p.client.Disconnect(ctx)
}

func (p *Partition) monitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			p.markBroken(e.Failure)
		},
	}
}

func (p *Partition) markBroken(cause error) {
	if p.broken.CompareAndSwap(false, true) {
		p.log.Warn().Err(cause).Msg("tenant partition marked unhealthy")
	}
}

func (p *Partition) observe(err error) error {
	if err != nil && mongo.IsNetworkError(err) {
		p.markBroken(err)
	}
	return err
}

type collectionModel struct {
	name string
	col  *mongo.Collection
	p    *Partition
}

func (m *collectionModel) Name() string { return m.name }

func (m *collectionModel) InsertOne(ctx context.Context, doc any) error {
	_, err := m.col.InsertOne(ctx, doc)
	return m.p.observe(err)
}

func (m *collectionModel) FindOne(ctx context.Context, filter bson.M, out any) error {
	err := m.p.observe(m.col.FindOne(ctx, filter).Decode(out))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tenant.ErrNoDocuments
	}
	return err
}

func (m *collectionModel) Find(ctx context.Context, filter bson.M, out any) error {
	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return m.p.observe(err)
	}
	return m.p.observe(cur.All(ctx, out))
}

func (m *collectionModel) UpdateOne(ctx context.Context, filter, update bson.M) (int64, error) {
	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, m.p.observe(err)
	}
	return res.ModifiedCount, nil
}

func (m *collectionModel) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := m.col.DeleteOne(ctx, filter)
	if err != nil {
		return 0, m.p.observe(err)
	}
	return res.DeletedCount, nil
}

func (m *collectionModel) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	n, err := m.col.CountDocuments(ctx, filter)
	return n, m.p.observe(err)
}
