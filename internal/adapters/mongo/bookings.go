package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

type BookingLedger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewBookingLedger(db *mongo.Database, logger observability.Logger) *BookingLedger {
	return &BookingLedger{coll: db.Collection("bookings"), logger: logger}
}

func (l *BookingLedger) Insert(ctx context.Context, b domain.Booking) error {
	_, err := l.coll.InsertOne(ctx, b)
	if err != nil {
		l.logger.WithError(err).Error("failed to insert booking")
	}
	return err
}

func (l *BookingLedger) Get(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := l.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, err
}

func (l *BookingLedger) SetPaymentLink(ctx context.Context, id, link string) error {
	res, err := l.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"paymentLink": link}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// Transition moves a Pending row into a terminal state. The Pending
// guard lives in the filter, so a concurrent sweep and payment callback
// cannot both win; repeating a completed transition is a no-op.
func (l *BookingLedger) Transition(ctx context.Context, id string, next domain.PaymentState) error {
	res, err := l.coll.UpdateOne(ctx,
		bson.M{"_id": id, "paymentState": domain.PaymentPending},
		bson.M{"$set": bson.M{"paymentState": next}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	b, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.PaymentState == next {
		return nil
	}
	return domain.ErrInvalidTransition
}

func (l *BookingLedger) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return l.list(ctx, bson.M{"userId": userID})
}

func (l *BookingLedger) ListAll(ctx context.Context) ([]domain.Booking, error) {
	return l.list(ctx, bson.M{})
}

// ListReleasable scans for bookings whose seat hold is due back: lapsed
// Pending rows, plus Expired or Cancelled rows still owing their seats.
func (l *BookingLedger) ListReleasable(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return l.list(ctx, bson.M{"$or": bson.A{
		bson.M{
			"paymentState": domain.PaymentPending,
			"expiresAt":    bson.M{"$lte": now},
		},
		bson.M{
			"paymentState":  bson.M{"$in": bson.A{domain.PaymentExpired, domain.PaymentCancelled}},
			"seatsReleased": bson.M{"$ne": true},
		},
	}})
}

func (l *BookingLedger) MarkSeatsReleased(ctx context.Context, id string) error {
	res, err := l.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"seatsReleased": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (l *BookingLedger) DeleteByMovie(ctx context.Context, movieID string) error {
	_, err := l.coll.DeleteMany(ctx, bson.M{"movieId": movieID})
	return err
}

func (l *BookingLedger) list(ctx context.Context, filter bson.M) ([]domain.Booking, error) {
	cur, err := l.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Booking
	for cur.Next(ctx) {
		var b domain.Booking
		if err := cur.Decode(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}
