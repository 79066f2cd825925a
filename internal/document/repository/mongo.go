package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoRecord is one stored document; the record bytes are kept opaque so
// every backend shares the codec.
type mongoRecord struct {
	ID   int64  `bson:"_id"`
	Data []byte `bson:"data"`
}

// MongoRepo implements Repository on a Mongo collection keyed by _id.
// The client belongs to the caller; Close is a no-op.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Put(ctx context.Context, id uint64, data []byte) error {
	rec := mongoRecord{ID: int64(id), Data: data}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, opts); err != nil {
		return fault("put", id, err)
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	var rec mongoRecord
	err := m.col.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fault("get", id, err)
	}
	return rec.Data, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id uint64) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return fault("delete", id, err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (m *MongoRepo) Keys(ctx context.Context) ([]uint64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fault("keys", 0, err)
	}
	defer cur.Close(ctx)

	ids := []uint64{}
	for cur.Next(ctx) {
		var rec struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&rec); err != nil {
			return nil, fault("keys", 0, err)
		}
		ids = append(ids, uint64(rec.ID))
	}
	if err := cur.Err(); err != nil {
		return nil, fault("keys", 0, err)
	}
	return ids, nil
}

func (m *MongoRepo) Clear(ctx context.Context) (int, error) {
	res, err := m.col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fault("clear", 0, err)
	}
	return int(res.DeletedCount), nil
}

func (m *MongoRepo) Close() error { return nil }

var _ Repository = (*MongoRepo)(nil)
