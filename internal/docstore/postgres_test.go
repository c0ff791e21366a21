package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPgRetryable(t *testing.T) {
	assert.True(t, isPgRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isPgRetryable(fmt.Errorf("docstore: set items/a: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, isPgRetryable(fmt.Errorf("%w: items/a changed", ErrConflict)))
	assert.False(t, isPgRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isPgRetryable(errors.New("boom")))
}

// openPostgres connects to POSTGRES_URL and migrates a fresh schema.
func openPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool, suiteRetry())
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresStoreSuite(t *testing.T) {
	runStoreSuite(t, openPostgres(t))
}

func TestPostgresContainmentFilters(t *testing.T) {
	ctx := context.Background()
	s := openPostgres(t)
	coll := fmt.Sprintf("players_%d", time.Now().UnixNano())
	hunter := "p2"

	// JSONB @> must match typed values, not their text
	require.NoError(t, s.Set(ctx, coll, "p1", item{ID: "p1", Group: "g", Alive: true, Parent: &hunter}))
	require.NoError(t, s.Set(ctx, coll, "p2", item{ID: "p2", Group: "g", Alive: false}))
	require.NoError(t, s.Set(ctx, coll, "p3", item{ID: "p3", Group: "true", Alive: true}))

	var alive []item
	require.NoError(t, s.Query(ctx, coll, Filter{"group": "g", "alive": true}, &alive))
	require.Len(t, alive, 1)
	assert.Equal(t, "p1", alive[0].ID)

	var dead []item
	require.NoError(t, s.Query(ctx, coll, Filter{"alive": false}, &dead))
	require.Len(t, dead, 1)
	assert.Equal(t, "p2", dead[0].ID)

	var targeting []item
	require.NoError(t, s.Query(ctx, coll, Filter{"parent": "p2"}, &targeting))
	require.Len(t, targeting, 1)
	assert.Equal(t, "p1", targeting[0].ID)

	var all []item
	require.NoError(t, s.Query(ctx, coll, nil, &all))
	assert.Len(t, all, 3)
}
