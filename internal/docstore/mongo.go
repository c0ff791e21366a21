package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// versionField is stamped on every document written through MongoStore.
const versionField = "_v"

const absent int64 = -1

// MongoStore runs transactions on a MongoDB replica set. Each document
// carries a version stamp; writes are conditional on the version that was
// read and documents that were only read get their stamp bumped at commit,
// so overlapping transactions surface as write conflicts and are retried.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	retry  RetryConfig
}

func NewMongoStore(client *mongo.Client, db *mongo.Database, retry RetryConfig) *MongoStore {
	return &MongoStore{client: client, db: db, retry: retry}
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	_, err := mongoGet(ctx, s.db.Collection(collection), id, out)
	return err
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter, out any) error {
	_, err := mongoQuery(ctx, s.db.Collection(collection), filter, out)
	return err
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, doc any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(ctx, collection, id, doc)
	})
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(ctx, collection, id)
	})
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("docstore: start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return withRetry(ctx, s.retry, func() error {
		return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txnOpts); err != nil {
				return fmt.Errorf("docstore: start transaction: %w", err)
			}

			tx := &mongoTx{
				db:       s.db,
				versions: make(map[docKey]int64),
				written:  make(map[docKey]bool),
			}
			if err := fn(sc, tx); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return err
			}
			if err := tx.validateReads(sc); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return err
			}
			return commitWithRetry(sc, sess)
		})
	}, isMongoRetryable)
}

func commitWithRetry(ctx context.Context, sess mongo.Session) error {
	var err error
	for i := 0; i < 3; i++ {
		err = sess.CommitTransaction(ctx)
		if err == nil {
			return nil
		}
		if !hasLabel(err, "UnknownTransactionCommitResult") {
			return err
		}
	}
	return err
}

func isMongoRetryable(err error) bool {
	return isConflict(err) || hasLabel(err, "TransientTransactionError")
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}

type mongoTx struct {
	db       *mongo.Database
	versions map[docKey]int64
	written  map[docKey]bool
}

func (tx *mongoTx) Get(ctx context.Context, collection, id string, out any) error {
	v, err := mongoGet(ctx, tx.db.Collection(collection), id, out)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	k := docKey{collection, id}
	if _, seen := tx.versions[k]; !seen {
		tx.versions[k] = v
	}
	return err
}

func (tx *mongoTx) Query(ctx context.Context, collection string, filter Filter, out any) error {
	versions, err := mongoQuery(ctx, tx.db.Collection(collection), filter, out)
	if err != nil {
		return err
	}
	for id, v := range versions {
		k := docKey{collection, id}
		if _, seen := tx.versions[k]; !seen {
			tx.versions[k] = v
		}
	}
	return nil
}

func (tx *mongoTx) Set(ctx context.Context, collection, id string, doc any) error {
	k := docKey{collection, id}
	coll := tx.db.Collection(collection)

	v, seen := tx.versions[k]
	if !seen {
		var err error
		if v, err = mongoVersion(ctx, coll, id); err != nil {
			return err
		}
	}

	next := v + 1
	if v == absent {
		next = 1
	}
	d, err := encodeWithVersion(doc, id, next)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}

	if v == absent {
		if _, err := coll.InsertOne(ctx, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s/%s created concurrently", ErrConflict, collection, id)
			}
			return fmt.Errorf("docstore: insert %s/%s: %w", collection, id, err)
		}
	} else {
		res, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: versionField, Value: v}}, d)
		if err != nil {
			return fmt.Errorf("docstore: replace %s/%s: %w", collection, id, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s/%s changed", ErrConflict, collection, id)
		}
	}

	tx.versions[k] = next
	tx.written[k] = true
	return nil
}

func (tx *mongoTx) Delete(ctx context.Context, collection, id string) error {
	k := docKey{collection, id}
	filter := bson.D{{Key: "_id", Value: id}}
	if v, seen := tx.versions[k]; seen && v != absent {
		filter = append(filter, bson.E{Key: versionField, Value: v})
	}
	if _, err := tx.db.Collection(collection).DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	tx.versions[k] = absent
	tx.written[k] = true
	return nil
}

// validateReads bumps the stamp of every document read but not written, so a
// concurrent writer of that document conflicts with this transaction.
func (tx *mongoTx) validateReads(ctx context.Context) error {
	for k, v := range tx.versions {
		if tx.written[k] {
			continue
		}
		coll := tx.db.Collection(k.collection)
		if v == absent {
			if err := claimAbsent(ctx, coll, k.id); err != nil {
				return err
			}
			continue
		}
		res, err := coll.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: k.id}, {Key: versionField, Value: v}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: versionField, Value: int64(1)}}}},
		)
		if err != nil {
			return fmt.Errorf("docstore: validate %s/%s: %w", k.collection, k.id, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s/%s changed", ErrConflict, k.collection, k.id)
		}
	}
	return nil
}

// claimAbsent writes and removes a tombstone under id. The snapshot never
// shows documents created after it was taken, but the insert collides with
// them as a write conflict.
func claimAbsent(ctx context.Context, coll *mongo.Collection, id string) error {
	if _, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: versionField, Value: int64(0)}}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s/%s appeared", ErrConflict, coll.Name(), id)
		}
		return fmt.Errorf("docstore: validate %s/%s: %w", coll.Name(), id, err)
	}
	if _, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("docstore: validate %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

func mongoGet(ctx context.Context, coll *mongo.Collection, id string, out any) (int64, error) {
	raw, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return absent, ErrNotFound
		}
		return absent, fmt.Errorf("docstore: find %s/%s: %w", coll.Name(), id, err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return absent, fmt.Errorf("docstore: decode %s/%s: %w", coll.Name(), id, err)
	}
	return rawVersion(raw), nil
}

func mongoVersion(ctx context.Context, coll *mongo.Collection, id string) (int64, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: versionField, Value: 1}})
	raw, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}, opts).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return absent, nil
		}
		return absent, fmt.Errorf("docstore: find %s/%s: %w", coll.Name(), id, err)
	}
	return rawVersion(raw), nil
}

func mongoQuery(ctx context.Context, coll *mongo.Collection, filter Filter, out any) (map[string]int64, error) {
	slice := reflect.ValueOf(out)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("docstore: query output must be a pointer to a slice, got %T", out)
	}
	slice = slice.Elem()
	elemType := slice.Type().Elem()

	f := bson.M{}
	for k, v := range filter {
		f[k] = v
	}
	cur, err := coll.Find(ctx, f, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	versions := make(map[string]int64)
	result := reflect.MakeSlice(slice.Type(), 0, 0)
	for cur.Next(ctx) {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(cur.Current, elem.Interface()); err != nil {
			return nil, fmt.Errorf("docstore: decode %s: %w", coll.Name(), err)
		}
		result = reflect.Append(result, elem.Elem())
		if id, ok := cur.Current.Lookup("_id").StringValueOK(); ok {
			versions[id] = rawVersion(cur.Current)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", coll.Name(), err)
	}
	slice.Set(result)
	return versions, nil
}

func rawVersion(raw bson.Raw) int64 {
	if v, ok := raw.Lookup(versionField).Int64OK(); ok {
		return v
	}
	return 0
}

func encodeWithVersion(doc any, id string, version int64) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	out := make(bson.D, 0, len(fields)+2)
	out = append(out, bson.E{Key: "_id", Value: id})
	for _, e := range fields {
		if e.Key == "_id" || e.Key == versionField {
			continue
		}
		out = append(out, e)
	}
	return append(out, bson.E{Key: versionField, Value: version}), nil
}
