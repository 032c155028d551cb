package crdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestRepo(t *testing.T) (*crdb.Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	dsn := endpoint + "/travel?sslmode=disable"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "CREATE DATABASE IF NOT EXISTS travel"); err != nil {
		t.Fatal(err)
	}
	if err := crdb.RunMigrations(dsn, "../../../migrations"); err != nil {
		t.Fatal(err)
	}
	return crdb.NewRepository(pool), pool
}

func testItem(price float64, adults, children int) domain.CartItem {
	pkg := domain.TravelPackage{ID: uuid.New(), AdultPrice: price, ChildPrice: price / 2}
	return domain.NewCartItem(pkg, uuid.New(), time.Now().AddDate(0, 1, 0), adults, children)
}

func TestRepository_CartTotals(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	itemA := testItem(100.0, 2, 0) // 200
	itemB := testItem(80.0, 1, 1)  // 120

	cart, err := repo.AddCartItem(ctx, userID, itemA)
	if err != nil {
		t.Fatal(err)
	}
	cart, err = repo.AddCartItem(ctx, userID, itemB)
	if err != nil {
		t.Fatal(err)
	}
	if cart.TotalAmount != 320.0 || cart.FinalAmount != 320.0 {
		t.Errorf("expected totals 320.00 after adds, got %.2f/%.2f", cart.TotalAmount, cart.FinalAmount)
	}

	// 2 adults -> 3 adults on itemA: +100
	if err := repo.UpdateCartItem(ctx, cart.ID, itemA.ID, 3, 0); err != nil {
		t.Fatal(err)
	}
	fetched, items, err := repo.GetCart(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.TotalAmount != 420.0 {
		t.Errorf("expected total 420.00 after update, got %.2f", fetched.TotalAmount)
	}
	if len(items) != 2 || items[0].ID != itemA.ID || items[1].ID != itemB.ID {
		t.Errorf("expected items in insertion order, got %v", items)
	}

	if err := repo.RemoveCartItem(ctx, cart.ID, itemB.ID); err != nil {
		t.Fatal(err)
	}
	fetched, items, err = repo.GetCart(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.TotalAmount != 300.0 || len(items) != 1 {
		t.Errorf("expected 300.00 and 1 item after remove, got %.2f and %d", fetched.TotalAmount, len(items))
	}

	if err := repo.RemoveCartItem(ctx, cart.ID, itemB.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("removing a gone item: expected ErrNotFound, got %v", err)
	}
}

func TestRepository_CreateBookingsCapacity(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	dep := domain.Departure{
		ID:        uuid.New(),
		PackageID: uuid.New(),
		StartDate: time.Now().AddDate(0, 1, 0),
		Capacity:  5,
	}
	if err := repo.InsertDeparture(ctx, dep); err != nil {
		t.Fatal(err)
	}

	full := domain.NewBooking(uuid.New(), dep.PackageID, dep.ID, uuid.New(),
		3, 2, 500.0, dep.StartDate, 7, domain.BookingPaid)
	if err := repo.CreateBookings(ctx, []domain.Booking{full}); err != nil {
		t.Fatal(err)
	}

	over := domain.NewBooking(uuid.New(), dep.PackageID, dep.ID, uuid.New(),
		1, 0, 100.0, dep.StartDate, 7, domain.BookingPaid)
	err := repo.CreateBookings(ctx, []domain.Booking{over})
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	if _, err := repo.GetBooking(ctx, over.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("rejected booking must not exist, got %v", err)
	}

	fetched, err := repo.GetDeparture(ctx, dep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Booked != 5 {
		t.Errorf("expected booked counter 5, got %d", fetched.Booked)
	}

	var outboxCount int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE event_type = 'checkout.completed'`).Scan(&outboxCount); err != nil {
		t.Fatal(err)
	}
	if outboxCount != 1 {
		t.Errorf("expected 1 checkout event queued, got %d", outboxCount)
	}
}

func TestRepository_CreateBookingsFromCart(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	dep := domain.Departure{
		ID:        uuid.New(),
		PackageID: uuid.New(),
		StartDate: time.Now().AddDate(0, 2, 0),
		Capacity:  10,
	}
	if err := repo.InsertDeparture(ctx, dep); err != nil {
		t.Fatal(err)
	}

	kept := testItem(100.0, 1, 0)     // 100
	consumed := testItem(150.0, 2, 0) // 300
	if _, err := repo.AddCartItem(ctx, userID, kept); err != nil {
		t.Fatal(err)
	}
	cart, err := repo.AddCartItem(ctx, userID, consumed)
	if err != nil {
		t.Fatal(err)
	}

	booking := domain.NewBooking(userID, consumed.PackageID, dep.ID, uuid.New(),
		2, 0, consumed.TotalPrice, dep.StartDate, 7, domain.BookingConfirmed)
	err = repo.CreateBookingsFromCart(ctx, cart.ID, []uuid.UUID{consumed.ID}, []domain.Booking{booking})
	if err != nil {
		t.Fatal(err)
	}

	fetched, items, err := repo.GetCart(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != kept.ID {
		t.Fatalf("expected only the kept item to remain, got %v", items)
	}
	if fetched.TotalAmount != 100.0 {
		t.Errorf("expected totals reduced to 100.00, got %.2f", fetched.TotalAmount)
	}

	var itemCount int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM cart_items WHERE id = $1`, consumed.ID).Scan(&itemCount); err != nil {
		t.Fatal(err)
	}
	if itemCount != 0 {
		t.Error("consumed item row must be deleted")
	}

	if _, err := repo.GetBooking(ctx, booking.ID); err != nil {
		t.Errorf("expected booking to exist, got %v", err)
	}
}

func TestRepository_BookingTransitions(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	dep := domain.Departure{ID: uuid.New(), PackageID: uuid.New(), StartDate: time.Now().AddDate(0, 1, 0), Capacity: 10}
	if err := repo.InsertDeparture(ctx, dep); err != nil {
		t.Fatal(err)
	}

	paid := domain.NewBooking(uuid.New(), dep.PackageID, dep.ID, uuid.New(),
		1, 0, 100.0, dep.StartDate, 7, domain.BookingPaid)
	if err := repo.CreateBookings(ctx, []domain.Booking{paid}); err != nil {
		t.Fatal(err)
	}

	if err := repo.CancelBooking(ctx, paid.ID); err != nil {
		t.Fatal(err)
	}
	fetched, err := repo.GetBooking(ctx, paid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.BookingCancelled {
		t.Errorf("expected CANCELLED, got %s", fetched.Status)
	}

	var refundEvents int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE event_type = 'booking.refund_requested'`).Scan(&refundEvents); err != nil {
		t.Fatal(err)
	}
	if refundEvents != 1 {
		t.Errorf("cancelling a paid booking must queue a refund request, got %d events", refundEvents)
	}

	if err := repo.CompleteBooking(ctx, paid.ID); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("CANCELLED -> COMPLETED: expected ErrIllegalTransition, got %v", err)
	}
}

func TestRepository_SweepAndReconcile(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	dep := domain.Departure{ID: uuid.New(), PackageID: uuid.New(), StartDate: time.Now().AddDate(0, 1, 0), Capacity: 10}
	if err := repo.InsertDeparture(ctx, dep); err != nil {
		t.Fatal(err)
	}
	past := domain.NewBooking(uuid.New(), dep.PackageID, dep.ID, uuid.New(),
		1, 0, 100.0, dep.StartDate, 7, domain.BookingConfirmed)
	if err := repo.CreateBookings(ctx, []domain.Booking{past}); err != nil {
		t.Fatal(err)
	}

	// Cutoff after the start date: the booking has departed.
	cutoff := dep.StartDate.Add(time.Hour)
	n, err := repo.CompletePastBookings(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 booking completed, got %d", n)
	}
	n, err = repo.CompletePastBookings(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second sweep must be a no-op, got %d", n)
	}

	orphan := domain.NewPayment(uuid.New(), 450.0, "card")
	orphan.Status = domain.PaymentSuccess
	if err := repo.InsertPayment(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	linked := domain.NewPayment(uuid.New(), 100.0, "card")
	linked.Status = domain.PaymentSuccess
	if err := repo.InsertPayment(ctx, linked); err != nil {
		t.Fatal(err)
	}
	covered := domain.NewBooking(linked.UserID, dep.PackageID, dep.ID, linked.ID,
		1, 0, 100.0, dep.StartDate, 7, domain.BookingPaid)
	if err := repo.CreateBookings(ctx, []domain.Booking{covered}); err != nil {
		t.Fatal(err)
	}

	orphans, err := repo.FindOrphanedPayments(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].ID != orphan.ID {
		t.Fatalf("expected exactly the orphaned payment, got %v", orphans)
	}

	if err := repo.MarkPaymentRefunded(ctx, orphan.ID); err != nil {
		t.Fatal(err)
	}
	refunded, err := repo.GetPayment(ctx, orphan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refunded.Status != domain.PaymentRefunded {
		t.Errorf("expected REFUNDED, got %s", refunded.Status)
	}

	var refundEvents int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE event_type = 'payment.refunded'`).Scan(&refundEvents); err != nil {
		t.Fatal(err)
	}
	if refundEvents != 1 {
		t.Errorf("expected 1 refund event queued, got %d", refundEvents)
	}
}
