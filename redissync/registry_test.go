package redissync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/icinga/icinga-redis-sync/database"
	"github.com/icinga/icinga-redis-sync/logging"
)

func newSQLiteTestDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &database.Config{Type: database.SQLite, Database: filepath.Join(t.TempDir(), "registry.db")}
	require.NoError(t, defaults.Set(cfg))

	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Hour)
	db, err := database.NewDbFromConfig(cfg, logger, database.RetryConnectorCallbacks{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestRegistry_EnsureSchemaIsIdempotent(t *testing.T) {
	db := newSQLiteTestDB(t)
	ctx := context.Background()

	r := NewRegistry(db, nil, time.Minute)
	require.NoError(t, r.EnsureSchema(ctx))
	require.NoError(t, r.EnsureSchema(ctx))

	has, err := db.HasTable(ctx, "writer_instance")
	require.NoError(t, err)
	require.True(t, has)
}

func TestRegistry_SingleInstanceBecomesLeader(t *testing.T) {
	db := newSQLiteTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewRegistry(db, nil, 50*time.Millisecond)
	becameLeader, err := r.Start(ctx)
	require.NoError(t, err)

	select {
	case <-becameLeader:
	case <-ctx.Done():
		t.Fatal("sole instance never became responsible")
	}

	require.NoError(t, r.Stop(context.Background()))
}

func TestRegistry_StopDeregistersInstance(t *testing.T) {
	db := newSQLiteTestDB(t)
	ctx := context.Background()

	r := NewRegistry(db, nil, time.Minute)
	require.NoError(t, r.EnsureSchema(ctx))
	require.NoError(t, r.EnsureSchema(ctx))

	_, err := db.ExecContext(ctx, `INSERT INTO writer_instance (id, heartbeat_at, responsible) VALUES (?, ?, 0)`, r.id, time.Now().Unix())
	require.NoError(t, err)

	require.NoError(t, r.Stop(ctx))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM writer_instance WHERE id = ?`, r.id))
	require.Equal(t, 0, count)
}
