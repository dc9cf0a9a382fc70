package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scp-mobile/platform/shared/pkg/mongodb"
	sharedtesting "github.com/scp-mobile/platform/shared/pkg/testing"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

func TestAuditRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := sharedtesting.CreateTestContext(2 * time.Minute)
	defer cancel()

	container, err := sharedtesting.NewMongoDBContainer(ctx)
	require.NoError(t, err)
	defer container.Close()

	config := mongodb.DefaultConfig()
	config.URI = container.URI
	config.Database = "scp_test"
	client, err := mongodb.NewClient(ctx, config)
	require.NoError(t, err)
	defer client.Close(context.Background())

	repo := NewAuditRepository(client.Database())

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Record(ctx, &domain.AuditEntry{RequestID: "req-1", Action: "approve-inventory-movement", Org: "acme", Success: true, DurationMs: 40, At: at}))
	require.NoError(t, repo.Record(ctx, &domain.AuditEntry{RequestID: "req-2", Action: "approve-inventory-movement", Org: "acme", Error: "vendor returned 500", At: at.Add(time.Second)}))
	require.NoError(t, repo.Record(ctx, &domain.AuditEntry{RequestID: "req-3", Action: "auth", Org: "acme", Success: true, At: at}))

	entries, err := repo.FindRecent(ctx, "approve-inventory-movement", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-2", entries[0].RequestID)
	assert.Equal(t, "vendor returned 500", entries[0].Error)
	assert.Equal(t, "req-1", entries[1].RequestID)
	assert.Equal(t, int64(40), entries[1].DurationMs)
	assert.True(t, entries[1].At.Equal(at))
}
