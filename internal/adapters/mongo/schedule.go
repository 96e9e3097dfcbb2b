// Package mongo holds the durable adapters. One schedule document per
// movie and a flat bookings collection; every write is a single-document
// atomic update so slot commits are linearizable per slot.
package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

type ScheduleStore struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewScheduleStore(db *mongo.Database, logger observability.Logger) *ScheduleStore {
	return &ScheduleStore{coll: db.Collection("schedules"), logger: logger}
}

type scheduleDoc struct {
	MovieID  string          `bson:"_id"`
	Schedule domain.Schedule `bson:"schedule"`
}

func slotPath(date, timeKey string) string {
	return "schedule." + date + "." + timeKey
}

func seatPath(date, timeKey, seat string) string {
	return slotPath(date, timeKey) + ".occupiedSeats." + seat
}

func (s *ScheduleStore) GetSlot(ctx context.Context, movieID, date, timeKey string) (domain.Slot, error) {
	var doc scheduleDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": movieID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	if err != nil {
		return domain.Slot{}, err
	}
	slot, ok := doc.Schedule[date][timeKey]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	if slot.OccupiedSeats == nil {
		slot.OccupiedSeats = map[string]string{}
	}
	return slot, nil
}

// UpsertSlots writes every entry in one pipeline update. $ifNull keeps
// existing slots exactly as they are, so prices buyers already paid and
// committed occupancy survive a re-run of the same schedule action.
func (s *ScheduleStore) UpsertSlots(ctx context.Context, movieID string, entries []domain.SlotSpec) error {
	if len(entries) == 0 {
		return errors.Wrap(domain.ErrInvalidRequest, "no slots given")
	}
	set := bson.D{}
	for _, e := range entries {
		if err := domain.ValidateSlotKey(e.Date, e.Time); err != nil {
			return err
		}
		path := slotPath(e.Date, e.Time)
		set = append(set, bson.E{Key: path, Value: bson.D{
			{Key: "$ifNull", Value: bson.A{
				"$" + path,
				bson.D{{Key: "price", Value: e.Price}, {Key: "occupiedSeats", Value: bson.D{}}},
			}},
		}})
	}
	pipeline := mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}
	_, err := s.coll.UpdateByID(ctx, movieID, pipeline, options.Update().SetUpsert(true))
	return err
}

// ReserveSeats is one conditional UpdateOne: the filter requires the slot
// to exist and every requested seat key to be absent, the update writes
// all of them. Two concurrent commits over the same seat can never both
// match the filter. On a miss the slot is re-read to name the conflicts;
// when the re-read shows the seats free again the update is retried.
func (s *ScheduleStore) ReserveSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error {
	if err := domain.ValidateSeats(seats); err != nil {
		return err
	}

	filter := bson.M{"_id": movieID, slotPath(date, timeKey): bson.M{"$exists": true}}
	set := bson.M{}
	for _, seat := range seats {
		filter[seatPath(date, timeKey, seat)] = bson.M{"$exists": false}
		set[seatPath(date, timeKey, seat)] = holderID
	}

	for attempt := 0; attempt < 3; attempt++ {
		res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		slot, err := s.GetSlot(ctx, movieID, date, timeKey)
		if err != nil {
			return err
		}
		if taken := slot.Conflicts(seats); len(taken) > 0 {
			return &domain.SeatConflictError{Seats: taken}
		}
		// Seats were freed between the update and the re-read; try again.
	}
	return errors.Wrap(domain.ErrInvalidRequest, "reservation kept losing the race")
}

func (s *ScheduleStore) ReleaseSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error {
	for _, seat := range seats {
		path := seatPath(date, timeKey, seat)
		// Holder match in the filter keeps the release idempotent and
		// guarantees it never drops a seat claimed by someone else.
		_, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": movieID, path: holderID},
			bson.M{"$unset": bson.M{path: ""}},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ScheduleStore) DeleteSchedule(ctx context.Context, movieID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": movieID})
	return err
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, movieID string) (domain.Schedule, error) {
	var doc scheduleDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": movieID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Schedule, nil
}

func (s *ScheduleStore) ListSchedules(ctx context.Context) ([]domain.MovieSchedule, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.MovieSchedule
	for cur.Next(ctx) {
		var doc scheduleDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.MovieSchedule{MovieID: doc.MovieID, Schedule: doc.Schedule})
	}
	return out, cur.Err()
}
