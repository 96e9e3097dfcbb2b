package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/show-schedules-and-bookings/internal/admin"
	mongoadapter "github.com/robertarktes/show-schedules-and-bookings/internal/adapters/mongo"
	"github.com/robertarktes/show-schedules-and-bookings/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/show-schedules-and-bookings/internal/adapters/redis"
	"github.com/robertarktes/show-schedules-and-bookings/internal/booking"
	"github.com/robertarktes/show-schedules-and-bookings/internal/catalog"
	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	httphandler "github.com/robertarktes/show-schedules-and-bookings/internal/http"
	"github.com/robertarktes/show-schedules-and-bookings/internal/idempotency"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
	"github.com/robertarktes/show-schedules-and-bookings/internal/payment"
	"github.com/robertarktes/show-schedules-and-bookings/internal/rateLimit"
)

const jwtSecret = "integration-secret"

func TestIntegration_ScheduleReservePay(t *testing.T) {
	ctx := context.Background()

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	// Provider stubs: a catalog that knows one movie and a checkout
	// endpoint that always issues a session.
	catalogStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 550, "title": "Fight Club", "runtime": 139})
	}))
	defer catalogStub.Close()

	paymentStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://pay.example/cs_1"})
	}))
	defer paymentStub.Close()

	// Wire the stack the way the api binary does.
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoHost+":"+mongoPort.Port()))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	db := mongoClient.Database("ssb")

	logger := observability.NewLogger()
	store := mongoadapter.NewScheduleStore(db, logger)
	ledger := mongoadapter.NewBookingLedger(db, logger)
	snapshots := mongoadapter.NewMovieSnapshots(db, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: redisHost + ":" + redisPort.Port()})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial("amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	publisher, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}

	cat := catalog.NewService(catalog.NewHTTPSource(catalogStub.URL, "test-key"), cache, snapshots, 10*time.Minute, logger)
	engine := booking.NewEngine(store, ledger, payment.NewClient(paymentStub.URL, "sk_test"), cat, publisher, logger)
	agg := admin.NewAggregator(store, ledger, snapshots)
	handlers := httphandler.NewHandlers(engine, agg, cat, store, ledger, idemp, logger)

	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl, jwtSecret))
	defer srv.Close()

	adminToken := signToken(t, "a1", "admin")
	userToken := signToken(t, "u1", "user")

	// Admin publishes a schedule.
	status, _ := call(t, srv.URL+"/v1/admin/shows", http.MethodPost, adminToken, map[string]any{
		"movieId": "550",
		"slots": []map[string]any{
			{"date": "2030-06-01", "time": "19:30", "price": 12.5},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("schedule: status %d", status)
	}

	// A user reserves two seats.
	status, body := call(t, srv.URL+"/v1/bookings", http.MethodPost, userToken, map[string]any{
		"movieId": "550", "date": "2030-06-01", "time": "19:30", "seats": []string{"A1", "A2"},
	})
	if status != http.StatusCreated {
		t.Fatalf("reserve: status %d, body %v", status, body)
	}
	if body["amount"] != 25.0 {
		t.Errorf("amount = %v", body["amount"])
	}
	bookingID := body["bookingId"].(string)

	// A second caller loses the overlap with exactly the shared seat.
	status, body = call(t, srv.URL+"/v1/bookings", http.MethodPost, signToken(t, "u2", "user"), map[string]any{
		"movieId": "550", "date": "2030-06-01", "time": "19:30", "seats": []string{"A2", "A3"},
	})
	if status != http.StatusConflict {
		t.Fatalf("conflict: status %d, body %v", status, body)
	}
	seats, _ := body["conflictingSeats"].([]any)
	if len(seats) != 1 || seats[0] != "A2" {
		t.Errorf("conflictingSeats = %v", body["conflictingSeats"])
	}

	// The provider confirms payment through the callback.
	status, _ = call(t, srv.URL+"/v1/payments/callback", http.MethodPost, "", map[string]any{
		"bookingId": bookingID, "status": "SUCCEEDED",
	})
	if status != http.StatusOK {
		t.Fatalf("callback: status %d", status)
	}

	b, err := ledger.Get(ctx, bookingID)
	if err != nil {
		t.Fatal(err)
	}
	if b.PaymentState != domain.PaymentPaid {
		t.Errorf("payment state = %v", b.PaymentState)
	}

	// The public seat map shows the sold seats.
	resp, err := http.Get(srv.URL + "/v1/shows/550/seats?date=2030-06-01&time=19:30")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var seatMap struct {
		OccupiedSeats []string `json:"occupiedSeats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&seatMap); err != nil {
		t.Fatal(err)
	}
	if len(seatMap.OccupiedSeats) != 2 {
		t.Errorf("occupiedSeats = %v", seatMap.OccupiedSeats)
	}
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func call(t *testing.T, url, method, token string, payload any) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
