package checkout

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Catalog resolves display and pricing data for packages.
type Catalog interface {
	GetPackage(ctx context.Context, id uuid.UUID) (*domain.TravelPackage, error)
	GetPackageImageURLs(ctx context.Context, id uuid.UUID) ([]string, error)
}

// Store is the transactional side: departures, cart items and the
// all-or-nothing booking writers.
type Store interface {
	GetDeparture(ctx context.Context, id uuid.UUID) (*domain.Departure, error)
	GetCartItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) ([]domain.CartItem, error)
	CreateBookings(ctx context.Context, bookings []domain.Booking) error
	CreateBookingsFromCart(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID, bookings []domain.Booking) error
}

// PaymentProcessor is the payment lifecycle as the orchestrator sees it.
type PaymentProcessor interface {
	Initiate(ctx context.Context, p domain.Payment) (uuid.UUID, error)
	Execute(ctx context.Context, id uuid.UUID, amount float64, method string) (string, error)
	AttachBookings(ctx context.Context, id uuid.UUID, bookingIDs []uuid.UUID) error
	Refund(ctx context.Context, id uuid.UUID, txnID string, amount float64) error
}

// Request is the checkout intent: either a direct buy (PackageID set) or a
// cart selection (CartID plus selected item ids).
type Request struct {
	UserID uuid.UUID

	CartID  uuid.UUID
	ItemIDs []uuid.UUID

	PackageID   uuid.UUID
	DepartureID uuid.UUID
	Adults      int
	Children    int

	Method string
	Card   Card
}

type Result struct {
	PaymentID  uuid.UUID
	BookingIDs []uuid.UUID
	Total      float64
	ImageURLs  []string
}

func (r Request) direct() bool {
	return r.PackageID != uuid.Nil
}

func (r Request) fromCart() bool {
	return r.CartID != uuid.Nil && len(r.ItemIDs) > 0
}

// Orchestrator drives one checkout attempt to a terminal outcome: either all
// bookings created and the payment SUCCESS, or the payment FAILED/REFUNDED and
// no bookings for this attempt. The steps are not one cross-store transaction;
// the ordering (charge before book, refund-mark when booking fails after a
// charge) is what keeps the externally visible state consistent.
type Orchestrator struct {
	catalog        Catalog
	store          Store
	payments       PaymentProcessor
	logger         observability.Logger
	gatewayTimeout time.Duration
}

func NewOrchestrator(catalog Catalog, store Store, payments PaymentProcessor, logger observability.Logger, gatewayTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		catalog:        catalog,
		store:          store,
		payments:       payments,
		logger:         logger,
		gatewayTimeout: gatewayTimeout,
	}
}

type line struct {
	packageID   uuid.UUID
	departureID uuid.UUID
	adults      int
	children    int
	amount      float64
	startDate   time.Time
	duration    int
	status      domain.BookingStatus
}

func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == uuid.Nil {
		return nil, errors.Wrap(domain.ErrMissingCheckoutContext, "user id")
	}
	if req.direct() == req.fromCart() {
		return nil, errors.Wrap(domain.ErrMissingCheckoutContext, "need exactly one of package or cart selection")
	}
	if err := ValidateCard(req.Card, time.Now()); err != nil {
		return nil, err
	}

	var (
		lines  []line
		images []string
		err    error
	)
	if req.direct() {
		lines, images, err = o.resolveDirect(ctx, req)
	} else {
		lines, err = o.resolveCart(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	var total float64
	for _, l := range lines {
		total += l.amount
	}

	payment := domain.NewPayment(req.UserID, total, req.Method)
	paymentID, err := o.payments.Initiate(ctx, payment)
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("init_failed").Inc()
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, o.gatewayTimeout)
	txnID, err := o.payments.Execute(gctx, paymentID, total, req.Method)
	cancel()
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("payment_failed").Inc()
		return nil, err
	}

	bookings := make([]domain.Booking, len(lines))
	for i, l := range lines {
		bookings[i] = domain.NewBooking(req.UserID, l.packageID, l.departureID, paymentID,
			l.adults, l.children, l.amount, l.startDate, l.duration, l.status)
	}

	if req.direct() {
		err = o.store.CreateBookings(ctx, bookings)
	} else {
		err = o.store.CreateBookingsFromCart(ctx, req.CartID, req.ItemIDs, bookings)
	}
	if err != nil {
		if refundErr := o.payments.Refund(ctx, paymentID, txnID, total); refundErr != nil {
			// Leaves a charged, unbooked payment; the sweep worker reconciles it.
			o.logger.WithField("payment_id", paymentID).Error("refund mark failed", refundErr)
		}
		observability.CheckoutsTotal.WithLabelValues("refunded").Inc()
		return nil, errors.Mark(err, domain.ErrRefundIssued)
	}

	bookingIDs := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		bookingIDs[i] = b.ID
	}
	if err := o.payments.AttachBookings(ctx, paymentID, bookingIDs); err != nil {
		// Bookings exist; the reconciler checks for them before refunding.
		o.logger.WithField("payment_id", paymentID).Error("failed to attach booking ids", err)
	}

	observability.CheckoutsTotal.WithLabelValues("success").Inc()
	return &Result{
		PaymentID:  paymentID,
		BookingIDs: bookingIDs,
		Total:      total,
		ImageURLs:  images,
	}, nil
}

// resolveDirect prices a single package+departure selection. Bookings on this
// path are created already PAID.
func (o *Orchestrator) resolveDirect(ctx context.Context, req Request) ([]line, []string, error) {
	if req.Adults+req.Children <= 0 {
		return nil, nil, errors.Wrap(domain.ErrValidation, "no travelers")
	}

	var (
		pkg    *domain.TravelPackage
		images []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pkg, err = o.catalog.GetPackage(gctx, req.PackageID)
		if err != nil {
			return errors.Wrap(err, "package")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		images, err = o.catalog.GetPackageImageURLs(gctx, req.PackageID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	dep, err := o.store.GetDeparture(ctx, req.DepartureID)
	if err != nil {
		return nil, nil, err
	}

	amount := float64(req.Adults)*pkg.AdultPrice + float64(req.Children)*pkg.ChildPrice
	return []line{{
		packageID:   pkg.ID,
		departureID: dep.ID,
		adults:      req.Adults,
		children:    req.Children,
		amount:      amount,
		startDate:   dep.StartDate,
		duration:    pkg.DurationDays,
		status:      domain.BookingPaid,
	}}, images, nil
}

// resolveCart prices the selected items from their snapshots: one booking per
// item, created CONFIRMED.
func (o *Orchestrator) resolveCart(ctx context.Context, req Request) ([]line, error) {
	items, err := o.store.GetCartItems(ctx, req.CartID, req.ItemIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.Wrap(domain.ErrMissingCheckoutContext, "no cart items selected")
	}

	durations := make(map[uuid.UUID]int)
	lines := make([]line, 0, len(items))
	for _, item := range items {
		duration, ok := durations[item.PackageID]
		if !ok {
			pkg, err := o.catalog.GetPackage(ctx, item.PackageID)
			if err != nil {
				return nil, errors.Wrap(err, "package")
			}
			duration = pkg.DurationDays
			durations[item.PackageID] = duration
		}

		dep, err := o.store.GetDeparture(ctx, item.DepartureID)
		if err != nil {
			return nil, err
		}

		lines = append(lines, line{
			packageID:   item.PackageID,
			departureID: item.DepartureID,
			adults:      item.Adults,
			children:    item.Children,
			amount:      item.TotalPrice,
			startDate:   dep.StartDate,
			duration:    duration,
			status:      domain.BookingConfirmed,
		})
	}
	return lines, nil
}
