package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

func TestAuditRepository_MockOps(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("constructor", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NotNil(t, NewAuditRepository(mt.DB))
	})

	mt.Run("record", func(mt *mtest.T) {
		repo := &AuditRepository{collection: mt.DB.Collection(auditCollection)}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Record(context.Background(), &domain.AuditEntry{
			RequestID: "req-1", Action: "clear-soq", Org: "acme", Success: true, DurationMs: 12, At: time.Now(),
		})
		require.NoError(t, err)
	})

	mt.Run("record failure", func(mt *mtest.T) {
		repo := &AuditRepository{collection: mt.DB.Collection(auditCollection)}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate"}))

		err := repo.Record(context.Background(), &domain.AuditEntry{RequestID: "req-1"})
		assert.Error(t, err)
	})

	mt.Run("find recent", func(mt *mtest.T) {
		repo := &AuditRepository{collection: mt.DB.Collection(auditCollection)}
		ns := mt.DB.Name() + "." + auditCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "requestId", Value: "req-2"}, {Key: "action", Value: "auth"}, {Key: "success", Value: false}, {Key: "error", Value: "Authentication failed"}},
				bson.D{{Key: "requestId", Value: "req-1"}, {Key: "action", Value: "auth"}, {Key: "success", Value: true}},
			),
		)

		entries, err := repo.FindRecent(context.Background(), "auth", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "req-2", entries[0].RequestID)
		assert.False(t, entries[0].Success)
		assert.Equal(t, "Authentication failed", entries[0].Error)
	})
}
