package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReplicaAdapter writes flat documents into per-entity collections. Every
// write is a whole-document upsert keyed on _id, so retried pushes converge
// on the same state. All calls go through a circuit breaker; an open breaker
// surfaces as a transient failure upstream.
type ReplicaAdapter struct {
	db      *mongo.Database
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

func NewReplicaAdapter(client *mongo.Client, database string, log zerolog.Logger) *ReplicaAdapter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mongodb-replica",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("replica circuit breaker state changed")
		},
	})

	return &ReplicaAdapter{
		db:      client.Database(database),
		breaker: breaker,
		log:     log,
	}
}

// Put upserts the whole document under _id = key.
func (a *ReplicaAdapter) Put(ctx context.Context, collection, key string, fields map[string]any) error {
	doc := bson.M{"_id": key}
	for k, v := range fields {
		doc[k] = v
	}

	_, err := a.breaker.Execute(func() (any, error) {
		return a.db.Collection(collection).ReplaceOne(
			ctx,
			bson.M{"_id": key},
			doc,
			options.Replace().SetUpsert(true),
		)
	})
	if err != nil {
		return fmt.Errorf("replica put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes the document. A missing document counts as success so
// retried deletes stay idempotent.
func (a *ReplicaAdapter) Delete(ctx context.Context, collection, key string) error {
	_, err := a.breaker.Execute(func() (any, error) {
		return a.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	})
	if err != nil {
		return fmt.Errorf("replica delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (a *ReplicaAdapter) Ping(ctx context.Context) error {
	return a.db.Client().Ping(ctx, nil)
}
