package state

import (
	"context"
	"time"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type watermarkDoc struct {
	Table     string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per table. Each Set is a single-document
// replace, which MongoDB applies atomically.
type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		coll:    client.Database(database).Collection(collection),
		timeout: 10 * time.Second,
	}
}

func (m *MongoStore) Get(ctx context.Context, table string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc watermarkDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": table}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NoWatermark, nil
	}
	if err != nil {
		return models.NoWatermark, errors.Wrapf(err, "find watermark for %s", table)
	}
	return doc.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, table, value string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := watermarkDoc{Table: table, Value: value, UpdatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.coll.ReplaceOne(ctx, bson.M{"_id": table}, doc, opts); err != nil {
		return errors.Wrapf(err, "store watermark for %s", table)
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context) ([]models.Watermark, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	findOpts := options.Find().SetSort(bson.M{"_id": 1})
	cursor, err := m.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, errors.Wrap(err, "list watermarks")
	}
	defer cursor.Close(ctx)

	var out []models.Watermark
	for cursor.Next(ctx) {
		var doc watermarkDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode watermark")
		}
		out = append(out, models.Watermark{Table: doc.Table, Value: doc.Value})
	}
	return out, cursor.Err()
}
