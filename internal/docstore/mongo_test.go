package docstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type stamped struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Count int    `bson:"count"`
}

func TestEncodeWithVersionStampsDocument(t *testing.T) {
	d, err := encodeWithVersion(stamped{ID: "ignored", Name: "x", Count: 3}, "p1", 7)
	require.NoError(t, err)

	require.Equal(t, "_id", d[0].Key)
	assert.Equal(t, "p1", d[0].Value)
	assert.Equal(t, versionField, d[len(d)-1].Key)
	assert.Equal(t, int64(7), d[len(d)-1].Value)

	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rawVersion(raw))

	var back stamped
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, stamped{ID: "p1", Name: "x", Count: 3}, back)
}

func TestRawVersionDefaultsToZero(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "_id", Value: "a"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rawVersion(raw))
}

// openMongo connects to MONGODB_URI, which must point at a replica set.
func openMongo(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("docstore_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return NewMongoStore(client, db, suiteRetry())
}

func TestMongoStoreSuite(t *testing.T) {
	runStoreSuite(t, openMongo(t))
}

func TestMongoWritesStampVersion(t *testing.T) {
	ctx := context.Background()
	s := openMongo(t)

	require.NoError(t, s.Set(ctx, "items", "a", item{ID: "a"}))
	require.NoError(t, s.Set(ctx, "items", "a", item{ID: "a", Count: 1}))

	raw, err := s.db.Collection("items").FindOne(ctx, bson.D{{Key: "_id", Value: "a"}}).Raw()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rawVersion(raw))
}

func TestMongoReadOnlyDependencyConflicts(t *testing.T) {
	ctx := context.Background()
	s := openMongo(t)
	require.NoError(t, s.Set(ctx, "items", "ring", item{ID: "ring", Group: "g"}))
	attempts := 0

	// the body only reads ring; a concurrent change to it must still force a retry
	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		var ring item
		if err := tx.Get(ctx, "items", "ring", &ring); err != nil {
			return err
		}
		if attempts == 1 {
			require.NoError(t, s.Set(context.Background(), "items", "ring", item{ID: "ring", Group: "g", Count: 5}))
		}
		return tx.Set(ctx, "items", "summary", item{ID: "summary", Count: ring.Count})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var summary item
	require.NoError(t, s.Get(ctx, "items", "summary", &summary))
	assert.Equal(t, 5, summary.Count)
}

func TestMongoAbsentReadConflictsWithCreate(t *testing.T) {
	ctx := context.Background()
	s := openMongo(t)
	attempts := 0

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		var u item
		err := tx.Get(ctx, "items", "user", &u)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if attempts == 1 {
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Set(context.Background(), "items", "user", item{ID: "user", Count: 3}))
		}
		return tx.Set(ctx, "items", "seen", item{ID: "seen", Count: u.Count})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var seen item
	require.NoError(t, s.Get(ctx, "items", "seen", &seen))
	assert.Equal(t, 3, seen.Count)

	// the tombstone never survives a commit
	var u item
	require.NoError(t, s.Get(ctx, "items", "user", &u))
	assert.Equal(t, 3, u.Count)
}
