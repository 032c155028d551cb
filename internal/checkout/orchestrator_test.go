package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/robertarktes/travel-bookings/internal/observability"
)

var validCard = Card{Number: "4242424242424242", CVC: "123", Expiry: "12/99"}

type fakeCatalog struct {
	pkgs   map[uuid.UUID]*domain.TravelPackage
	images []string
}

func (f *fakeCatalog) GetPackage(ctx context.Context, id uuid.UUID) (*domain.TravelPackage, error) {
	pkg, ok := f.pkgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pkg, nil
}

func (f *fakeCatalog) GetPackageImageURLs(ctx context.Context, id uuid.UUID) ([]string, error) {
	return f.images, nil
}

type fakeStore struct {
	departures map[uuid.UUID]*domain.Departure
	items      []domain.CartItem

	created      []domain.Booking
	createErr    error
	consumedCart uuid.UUID
	consumedIDs  []uuid.UUID
}

func (f *fakeStore) GetDeparture(ctx context.Context, id uuid.UUID) (*domain.Departure, error) {
	dep, ok := f.departures[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return dep, nil
}

func (f *fakeStore) GetCartItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) ([]domain.CartItem, error) {
	return f.items, nil
}

func (f *fakeStore) CreateBookings(ctx context.Context, bookings []domain.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, bookings...)
	return nil
}

func (f *fakeStore) CreateBookingsFromCart(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID, bookings []domain.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.consumedCart = cartID
	f.consumedIDs = itemIDs
	f.created = append(f.created, bookings...)
	return nil
}

type fakePayments struct {
	initiated *domain.Payment
	execErr   error
	attached  []uuid.UUID
	refunded  bool
}

func (f *fakePayments) Initiate(ctx context.Context, p domain.Payment) (uuid.UUID, error) {
	f.initiated = &p
	return p.ID, nil
}

func (f *fakePayments) Execute(ctx context.Context, id uuid.UUID, amount float64, method string) (string, error) {
	if f.execErr != nil {
		return "", f.execErr
	}
	return "SIM-test", nil
}

func (f *fakePayments) AttachBookings(ctx context.Context, id uuid.UUID, bookingIDs []uuid.UUID) error {
	f.attached = bookingIDs
	return nil
}

func (f *fakePayments) Refund(ctx context.Context, id uuid.UUID, txnID string, amount float64) error {
	f.refunded = true
	return nil
}

func TestCheckout_DirectSuccess(t *testing.T) {
	pkgID := uuid.New()
	depID := uuid.New()

	catalog := &fakeCatalog{
		pkgs: map[uuid.UUID]*domain.TravelPackage{
			pkgID: {ID: pkgID, DurationDays: 7, AdultPrice: 150.0, ChildPrice: 150.0},
		},
		images: []string{"https://img.example/1.jpg"},
	}
	store := &fakeStore{
		departures: map[uuid.UUID]*domain.Departure{
			depID: {ID: depID, PackageID: pkgID, StartDate: time.Now().AddDate(0, 1, 0), Capacity: 10},
		},
	}
	pay := &fakePayments{}

	o := NewOrchestrator(catalog, store, pay, observability.NewNopLogger(), time.Second)
	result, err := o.Checkout(context.Background(), Request{
		UserID:      uuid.New(),
		PackageID:   pkgID,
		DepartureID: depID,
		Adults:      2,
		Children:    1,
		Method:      "card",
		Card:        validCard,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if result.Total != 450.0 {
		t.Errorf("expected total 450.00, got %.2f", result.Total)
	}
	if pay.initiated == nil || pay.initiated.Amount != 450.0 {
		t.Errorf("expected payment initiated for 450.00, got %+v", pay.initiated)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(store.created))
	}
	b := store.created[0]
	if b.Status != domain.BookingPaid {
		t.Errorf("expected direct booking PAID, got %s", b.Status)
	}
	if b.Travelers != 3 || b.TotalAmount != 450.0 {
		t.Errorf("unexpected booking: %d travelers, %.2f", b.Travelers, b.TotalAmount)
	}
	if len(pay.attached) != 1 || pay.attached[0] != b.ID {
		t.Errorf("expected booking id attached to payment, got %v", pay.attached)
	}
	if pay.refunded {
		t.Error("refund should not run on success")
	}
	if len(result.ImageURLs) != 1 {
		t.Errorf("expected image urls in result, got %v", result.ImageURLs)
	}
}

func TestCheckout_PaymentDeclined(t *testing.T) {
	pkgID := uuid.New()
	depID := uuid.New()

	catalog := &fakeCatalog{
		pkgs: map[uuid.UUID]*domain.TravelPackage{
			pkgID: {ID: pkgID, DurationDays: 3, AdultPrice: 100.0},
		},
	}
	store := &fakeStore{
		departures: map[uuid.UUID]*domain.Departure{
			depID: {ID: depID, PackageID: pkgID, Capacity: 10},
		},
	}
	pay := &fakePayments{execErr: cerrors.Mark(errors.New("gateway declined"), domain.ErrPaymentDeclined)}

	o := NewOrchestrator(catalog, store, pay, observability.NewNopLogger(), time.Second)
	_, err := o.Checkout(context.Background(), Request{
		UserID:      uuid.New(),
		PackageID:   pkgID,
		DepartureID: depID,
		Adults:      1,
		Method:      "card",
		Card:        validCard,
	})
	if !cerrors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	if len(store.created) != 0 {
		t.Error("no bookings may exist after a declined payment")
	}
	if pay.refunded {
		t.Error("a declined payment needs no refund")
	}
}

func TestCheckout_BookingFailureRefunds(t *testing.T) {
	pkgID := uuid.New()
	depID := uuid.New()

	catalog := &fakeCatalog{
		pkgs: map[uuid.UUID]*domain.TravelPackage{
			pkgID: {ID: pkgID, DurationDays: 3, AdultPrice: 100.0},
		},
	}
	store := &fakeStore{
		departures: map[uuid.UUID]*domain.Departure{
			depID: {ID: depID, PackageID: pkgID, Capacity: 5, Booked: 5},
		},
		createErr: domain.ErrCapacityExceeded,
	}
	pay := &fakePayments{}

	o := NewOrchestrator(catalog, store, pay, observability.NewNopLogger(), time.Second)
	_, err := o.Checkout(context.Background(), Request{
		UserID:      uuid.New(),
		PackageID:   pkgID,
		DepartureID: depID,
		Adults:      1,
		Method:      "card",
		Card:        validCard,
	})
	if !cerrors.Is(err, domain.ErrRefundIssued) {
		t.Fatalf("expected ErrRefundIssued, got %v", err)
	}
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected underlying ErrCapacityExceeded, got %v", err)
	}
	if !pay.refunded {
		t.Error("a charged payment whose booking failed must be refunded")
	}
	if len(pay.attached) != 0 {
		t.Error("no booking ids may be attached on failure")
	}
}

func TestCheckout_FromCart(t *testing.T) {
	pkgID := uuid.New()
	depID := uuid.New()
	cartID := uuid.New()

	itemA := domain.CartItem{ID: uuid.New(), PackageID: pkgID, DepartureID: depID, Adults: 2, TotalPrice: 300.0}
	itemB := domain.CartItem{ID: uuid.New(), PackageID: pkgID, DepartureID: depID, Adults: 1, Children: 1, TotalPrice: 250.0}

	catalog := &fakeCatalog{
		pkgs: map[uuid.UUID]*domain.TravelPackage{
			pkgID: {ID: pkgID, DurationDays: 5, AdultPrice: 150.0, ChildPrice: 100.0},
		},
	}
	store := &fakeStore{
		departures: map[uuid.UUID]*domain.Departure{
			depID: {ID: depID, PackageID: pkgID, Capacity: 10},
		},
		items: []domain.CartItem{itemA, itemB},
	}
	pay := &fakePayments{}

	o := NewOrchestrator(catalog, store, pay, observability.NewNopLogger(), time.Second)
	result, err := o.Checkout(context.Background(), Request{
		UserID:  uuid.New(),
		CartID:  cartID,
		ItemIDs: []uuid.UUID{itemA.ID, itemB.ID},
		Method:  "card",
		Card:    validCard,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if result.Total != 550.0 {
		t.Errorf("expected total 550.00 from item snapshots, got %.2f", result.Total)
	}
	if store.consumedCart != cartID || len(store.consumedIDs) != 2 {
		t.Errorf("expected cart %s items consumed, got %s %v", cartID, store.consumedCart, store.consumedIDs)
	}
	if len(store.created) != 2 {
		t.Fatalf("expected one booking per item, got %d", len(store.created))
	}
	for _, b := range store.created {
		if b.Status != domain.BookingConfirmed {
			t.Errorf("expected cart booking CONFIRMED, got %s", b.Status)
		}
	}
}

func TestCheckout_RejectsBadContext(t *testing.T) {
	o := NewOrchestrator(&fakeCatalog{}, &fakeStore{}, &fakePayments{}, observability.NewNopLogger(), time.Second)

	_, err := o.Checkout(context.Background(), Request{UserID: uuid.New(), Method: "card", Card: validCard})
	if !errors.Is(err, domain.ErrMissingCheckoutContext) {
		t.Errorf("neither path selected: expected ErrMissingCheckoutContext, got %v", err)
	}

	_, err = o.Checkout(context.Background(), Request{
		UserID:    uuid.New(),
		PackageID: uuid.New(),
		CartID:    uuid.New(),
		ItemIDs:   []uuid.UUID{uuid.New()},
		Method:    "card",
		Card:      validCard,
	})
	if !errors.Is(err, domain.ErrMissingCheckoutContext) {
		t.Errorf("both paths selected: expected ErrMissingCheckoutContext, got %v", err)
	}

	_, err = o.Checkout(context.Background(), Request{
		UserID:      uuid.New(),
		PackageID:   uuid.New(),
		DepartureID: uuid.New(),
		Adults:      1,
		Method:      "card",
		Card:        Card{Number: "1234", CVC: "123", Expiry: "12/99"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad card: expected ErrValidation, got %v", err)
	}
}
