package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type subscriptionDocument struct {
	TenantID               string     `bson:"_id"`
	ID                     string     `bson:"id"`
	PlanID                 string     `bson:"plan_id"`
	Status                 string     `bson:"status"`
	CurrentPeriodStart     time.Time  `bson:"current_period_start"`
	CurrentPeriodEnd       time.Time  `bson:"current_period_end"`
	CancelAtPeriodEnd      bool       `bson:"cancel_at_period_end"`
	ProviderCustomerID     string     `bson:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string     `bson:"provider_subscription_id,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
	CancelledAt            *time.Time `bson:"cancelled_at,omitempty"`
	Revision               int64      `bson:"revision"`
}

// historyDocument is keyed by subscription ID so archiving is idempotent.
type historyDocument struct {
	ID           string               `bson:"_id"`
	TenantID     string               `bson:"tenant_id"`
	Subscription subscriptionDocument `bson:"subscription"`
	CreatedAt    time.Time            `bson:"created_at"`
	SupersededAt time.Time            `bson:"superseded_at"`
}

func toDocument(s *Subscription) subscriptionDocument {
	return subscriptionDocument{
		TenantID:               s.TenantID,
		ID:                     s.ID.String(),
		PlanID:                 s.PlanID,
		Status:                 string(s.Status),
		CurrentPeriodStart:     s.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:       s.CurrentPeriodEnd.UTC(),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
		ProviderCustomerID:     s.ProviderCustomerID,
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		CreatedAt:              s.CreatedAt.UTC(),
		UpdatedAt:              s.UpdatedAt.UTC(),
		CancelledAt:            s.CancelledAt,
		Revision:               s.Revision,
	}
}

func (d subscriptionDocument) subscription() (*Subscription, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &Subscription{
		ID:                     id,
		TenantID:               d.TenantID,
		PlanID:                 d.PlanID,
		Status:                 Status(d.Status),
		CurrentPeriodStart:     d.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:       d.CurrentPeriodEnd.UTC(),
		CancelAtPeriodEnd:      d.CancelAtPeriodEnd,
		ProviderCustomerID:     d.ProviderCustomerID,
		ProviderSubscriptionID: d.ProviderSubscriptionID,
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
		CancelledAt:            d.CancelledAt,
		Revision:               d.Revision,
	}, nil
}

// MongoStore keeps current subscriptions keyed by tenant and archives superseded ones
// in a separate collection.
type MongoStore struct {
	current *mongo.Collection
	history *mongo.Collection
	now     func() time.Time
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore uses the "subscriptions" and "subscription_history" collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		current: db.Collection("subscriptions"),
		history: db.Collection("subscription_history"),
		now:     time.Now,
	}
}

// EnsureIndexes creates the history lookup index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, tenantID string) (*Subscription, error) {
	var doc subscriptionDocument
	err := s.current.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return doc.subscription()
}

func (s *MongoStore) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	_, err := s.current.InsertOne(ctx, toDocument(sub))
	switch {
	case err == nil:
		return sub.clone(), nil
	case mongo.IsDuplicateKeyError(err):
		return s.Get(ctx, sub.TenantID)
	default:
		return nil, errors.Join(ErrStoreFailure, err)
	}
}

func (s *MongoStore) Save(ctx context.Context, sub *Subscription) error {
	filter := bson.M{
		"_id":      sub.TenantID,
		"id":       sub.ID.String(),
		"revision": sub.Revision,
		"status":   bson.M{"$ne": string(StatusCancelled)},
	}
	doc := toDocument(sub)
	doc.Revision++

	res, err := s.current.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, err := s.Get(ctx, sub.TenantID)
	if err != nil {
		return err
	}
	if current.ID != sub.ID {
		return ErrSubscriptionNotFound
	}
	return ErrConflict
}

// Supersede archives prev before replacing it. The two writes are not transactional;
// a crash between them leaves prev both archived and current, which a retry repairs.
func (s *MongoStore) Supersede(ctx context.Context, prev, next *Subscription) error {
	archived := historyDocument{
		ID:           prev.ID.String(),
		TenantID:     prev.TenantID,
		Subscription: toDocument(prev),
		CreatedAt:    prev.CreatedAt.UTC(),
		SupersededAt: s.now().UTC(),
	}
	_, err := s.history.ReplaceOne(ctx, bson.M{"_id": archived.ID}, archived, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}

	res, err := s.current.ReplaceOne(ctx, bson.M{"_id": prev.TenantID, "id": prev.ID.String()}, toDocument(next))
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if res.MatchedCount == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, tenantID string) ([]*Subscription, error) {
	cur, err := s.history.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	var docs []historyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	out := make([]*Subscription, 0, len(docs))
	for _, d := range docs {
		sub, err := d.Subscription.subscription()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}
