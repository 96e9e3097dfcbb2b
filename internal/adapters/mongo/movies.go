package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

// MovieSnapshots persists the last-known-good copy of catalog metadata.
// The catalog service falls back to it when the external fetch fails.
type MovieSnapshots struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewMovieSnapshots(db *mongo.Database, logger observability.Logger) *MovieSnapshots {
	return &MovieSnapshots{coll: db.Collection("movies"), logger: logger}
}

func (m *MovieSnapshots) Save(ctx context.Context, movie domain.MovieRef) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": movie.ID}, movie, options.Replace().SetUpsert(true))
	if err != nil {
		m.logger.WithError(err).Error("failed to save movie snapshot")
	}
	return err
}

func (m *MovieSnapshots) Get(ctx context.Context, movieID string) (domain.MovieRef, error) {
	var movie domain.MovieRef
	err := m.coll.FindOne(ctx, bson.M{"_id": movieID}).Decode(&movie)
	if err == mongo.ErrNoDocuments {
		return domain.MovieRef{}, domain.ErrMovieNotFound
	}
	return movie, err
}

func (m *MovieSnapshots) List(ctx context.Context) ([]domain.MovieRef, error) {
	cur, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.MovieRef
	for cur.Next(ctx) {
		var movie domain.MovieRef
		if err := cur.Decode(&movie); err != nil {
			return nil, err
		}
		out = append(out, movie)
	}
	return out, cur.Err()
}
