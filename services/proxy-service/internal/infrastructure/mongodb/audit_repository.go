package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"

	"github.com/scp-mobile/platform/shared/pkg/tracing"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

const (
	auditCollection = "request_audit"
	auditRetention  = 30 * 24 * time.Hour
)

var tracer = otel.Tracer("audit-repository")

// AuditRepository implements domain.AuditRepository
type AuditRepository struct {
	collection *mongo.Collection
}

// NewAuditRepository creates the repository and its indexes. Entries expire
// after thirty days.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	collection := db.Collection(auditCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
		{
			Keys: bson.D{
				{Key: "action", Value: 1},
				{Key: "at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "org", Value: 1},
				{Key: "at", Value: -1},
			},
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &AuditRepository{collection: collection}
}

// Record stores one entry
func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := tracing.TracedOperation(ctx, tracer, "audit.record", func(ctx context.Context) (*mongo.InsertOneResult, error) {
		return r.collection.InsertOne(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// FindRecent returns the latest entries for an action, newest first
func (r *AuditRepository) FindRecent(ctx context.Context, action string, limit int64) ([]*domain.AuditEntry, error) {
	filter := bson.M{}
	if action != "" {
		filter["action"] = action
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)

	return tracing.TracedOperation(ctx, tracer, "audit.find_recent", func(ctx context.Context) ([]*domain.AuditEntry, error) {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var entries []*domain.AuditEntry
		if err := cursor.All(ctx, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	})
}
