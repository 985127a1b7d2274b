package payment

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// EventsCollection holds the audit log of verified webhook events.
const EventsCollection = "stripe_events"

// EventRepository records verified webhook events before they are dispatched.
type EventRepository interface {
	Record(ctx context.Context, ev StoredEvent) error
}

type mongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) EventRepository {
	return &mongoRepo{coll: db.Collection(EventsCollection)}
}

// Record stores the payload as a raw JSON string. Customer metadata keys may
// start with "$" and must not reach the BSON decoder.
func (r *mongoRepo) Record(ctx context.Context, ev StoredEvent) error {
	_, err := r.coll.InsertOne(ctx, bson.M{
		"event_id":    ev.EventID,
		"type":        ev.Type,
		"received_at": ev.ReceivedAt,
		"object_id":   gjson.GetBytes(ev.Payload, "data.object.id").String(),
		"payload":     string(ev.Payload),
	})
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.EventID, err)
	}
	return nil
}

type nopRepo struct{}

// NopRepository discards events; used when no document store is configured.
func NopRepository() EventRepository { return nopRepo{} }

func (nopRepo) Record(context.Context, StoredEvent) error { return nil }
