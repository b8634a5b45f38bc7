package usage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/formloom/quota/pkg/plan"
)

type counterDocument struct {
	ID        string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	Period    string    `bson:"period"`
	Action    string    `bson:"action"`
	Count     int64     `bson:"count"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per counter, keyed by Key.String().
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ ConditionalStore = (*MongoStore)(nil)

// NewMongoStore creates a store backed by the given collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

// EnsureIndexes creates the index GetMany relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "period", Value: 1}},
	})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoStore) update(key Key, amount int64) bson.M {
	return bson.M{
		"$inc": bson.M{"count": amount},
		"$set": bson.M{"updated_at": s.now().UTC()},
		"$setOnInsert": bson.M{
			"tenant_id": key.TenantID,
			"period":    key.Period,
			"action":    string(key.Action),
		},
	}
}

func (s *MongoStore) Increment(ctx context.Context, key Key, amount int64) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDocument
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": key.String()}, s.update(key, amount), opts).Decode(&doc)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return doc.Count, nil
}

// IncrementIfBelow matches the counter only while it has room for amount.
// If the upsert collides on _id the document already exists, so the update is
// retried once without upsert and a miss is reported as a denial.
func (s *MongoStore) IncrementIfBelow(ctx context.Context, key Key, limit, amount int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}
	if amount > limit {
		current, err := s.Get(ctx, key)
		return current, false, err
	}

	filter := bson.M{
		"_id":   key.String(),
		"count": bson.M{"$lte": limit - amount},
	}

	var doc counterDocument
	err := s.coll.FindOneAndUpdate(ctx, filter, s.update(key, amount),
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = s.coll.FindOneAndUpdate(ctx, filter, s.update(key, amount),
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
	}

	switch {
	case err == nil:
		return doc.Count, true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		current, err := s.Get(ctx, key)
		return current, false, err
	default:
		return 0, false, errors.Join(ErrStoreFailure, err)
	}
}

func (s *MongoStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var doc counterDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return doc.Count, nil
}

func (s *MongoStore) GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error) {
	out := zeroSnapshot(actions)
	if len(actions) == 0 {
		return out, nil
	}

	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	cur, err := s.coll.Find(ctx, bson.M{
		"tenant_id": tenantID,
		"period":    period,
		"action":    bson.M{"$in": names},
	})
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	var docs []counterDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	for _, d := range docs {
		out[plan.Action(d.Action)] = d.Count
	}
	return out, nil
}

func (s *MongoStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key.String()}); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}
