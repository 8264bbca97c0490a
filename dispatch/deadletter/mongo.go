package deadletter

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrCollectionRequired = fmt.Errorf("mongo collection is required")

// MongoStore persists dead-letter records in a MongoDB collection, using the
// record key as _id so writes are insert-only and distinct failures can never
// overwrite each other.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store writing to coll.
func NewMongoStore(coll *mongo.Collection) (*MongoStore, error) {
	if nilcheck.Interface(coll) {
		return nil, ErrCollectionRequired
	}

	return &MongoStore{coll: coll}, nil
}

type mongoRecord struct {
	Key string `bson:"_id"`
	Record `bson:",inline"`
}

// Write inserts the record keyed by key. On the rare _id collision (the same
// message dead-lettered twice on one day) the insert is retried once with a
// random suffix instead of overwriting the earlier record.
func (store *MongoStore) Write(ctx context.Context, key string, record Record) error {
	_, err := store.coll.InsertOne(ctx, mongoRecord{Key: key, Record: record})
	if err == nil {
		return nil
	}

	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	suffixed := key + "/" + uuid.NewString()[:8]

	if _, err := store.coll.InsertOne(ctx, mongoRecord{Key: suffixed, Record: record}); err != nil {
		return fmt.Errorf("insert dead letter with suffixed key: %w", err)
	}

	return nil
}

// Find returns the records matching filter, mainly for operational tooling.
func (store *MongoStore) Find(ctx context.Context, filter bson.M) ([]Record, error) {
	cursor, err := store.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find dead letters: %w", err)
	}

	defer func() { _ = cursor.Close(ctx) }()

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode dead letters: %w", err)
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.Record)
	}

	return records, nil
}
