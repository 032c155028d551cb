package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the one mutable pre-purchase aggregate a user owns. TotalAmount and
// FinalAmount are cached sums over the contained items; every mutation path
// adjusts them transactionally instead of re-summing.
type Cart struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ItemIDs     []uuid.UUID
	TotalAmount float64
	FinalAmount float64
	IsValid     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem snapshots pricing at the time of the last edit; later package price
// changes do not alter cart totals.
type CartItem struct {
	ID          uuid.UUID
	PackageID   uuid.UUID
	DepartureID uuid.UUID
	Adults      int
	Children    int
	AdultPrice  float64
	ChildPrice  float64
	TotalPrice  float64
	StartDate   time.Time
	ExpiresAt   *time.Time
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ci CartItem) Travelers() int {
	return ci.Adults + ci.Children
}

// Departure is a dated instance of a package with its own seat counters.
// Booked may only change inside the capacity-checking booking transaction.
type Departure struct {
	ID        uuid.UUID
	PackageID uuid.UUID
	StartDate time.Time
	Capacity  int
	Booked    int
}

type Payment struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Amount       float64
	Method       string
	Status       PaymentStatus
	GatewayTxnID string
	BookingIDs   []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Booking struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PackageID   uuid.UUID
	DepartureID uuid.UUID
	PaymentID   uuid.UUID
	Adults      int
	Children    int
	Travelers   int
	Subtotal    float64
	TotalAmount float64
	StartDate   time.Time
	EndDate     time.Time
	Status      BookingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TravelPackage is catalog data: display fields plus the unit prices checkout
// snapshots into cart items and bookings.
type TravelPackage struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Destination  string
	DurationDays int
	AdultPrice   float64
	ChildPrice   float64
	Departures   []Departure
	ImageIDs     []uuid.UUID
}

// NewCartItem prices a selection against the package it was taken from.
func NewCartItem(pkg TravelPackage, departureID uuid.UUID, startDate time.Time, adults, children int) CartItem {
	now := time.Now()
	item := CartItem{
		ID:          uuid.New(),
		PackageID:   pkg.ID,
		DepartureID: departureID,
		Adults:      adults,
		Children:    children,
		AdultPrice:  pkg.AdultPrice,
		ChildPrice:  pkg.ChildPrice,
		StartDate:   startDate,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.TotalPrice = itemTotal(item)
	return item
}

// Reprice applies a quantity edit, recomputing TotalPrice from the snapshotted
// unit prices.
func (ci *CartItem) Reprice(adults, children int) {
	ci.Adults = adults
	ci.Children = children
	ci.TotalPrice = itemTotal(*ci)
	ci.UpdatedAt = time.Now()
}

func itemTotal(ci CartItem) float64 {
	return float64(ci.Adults)*ci.AdultPrice + float64(ci.Children)*ci.ChildPrice
}

// NewBooking builds the durable purchase record for one line item. The end
// date covers the package duration starting at the departure date.
func NewBooking(userID, packageID, departureID, paymentID uuid.UUID, adults, children int, amount float64, startDate time.Time, durationDays int, status BookingStatus) Booking {
	now := time.Now()
	return Booking{
		ID:          uuid.New(),
		UserID:      userID,
		PackageID:   packageID,
		DepartureID: departureID,
		PaymentID:   paymentID,
		Adults:      adults,
		Children:    children,
		Travelers:   adults + children,
		Subtotal:    amount,
		TotalAmount: amount,
		StartDate:   startDate,
		EndDate:     startDate.AddDate(0, 0, durationDays-1),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewPayment(userID uuid.UUID, amount float64, method string) Payment {
	now := time.Now()
	return Payment{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
