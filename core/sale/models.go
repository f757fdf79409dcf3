package sale

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Statuses, in pipeline order.
const (
	StatusNew         = "NEW"
	StatusContacted   = "CONTACTED"
	StatusProposal    = "PROPOSAL"
	StatusNegotiation = "NEGOTIATION"
	StatusWon         = "WON"
	StatusLost        = "LOST"
)

const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

var (
	Statuses   = []string{StatusNew, StatusContacted, StatusProposal, StatusNegotiation, StatusWon, StatusLost}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

	ErrNotFound = errors.New("sale not found")
)

type Sale struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	CustomerID        null.String         `json:"customer_id"`
	Status            string              `json:"status"`
	Amount            decimal.NullDecimal `json:"amount"`
	ExpectedCloseDate null.Time           `json:"expected_close_date"`
	AssignedTo        null.String         `json:"assigned_to"`
	Priority          string              `json:"priority"`
	IsArchived        bool                `json:"is_archived"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Value is the sale amount, zero when unset.
func (s Sale) Value() decimal.Decimal {
	if s.Amount.Valid {
		return s.Amount.Decimal
	}
	return decimal.Zero
}

// IsOpen reports whether the sale is still in the pipeline.
func (s Sale) IsOpen() bool {
	return s.Status != StatusWon && s.Status != StatusLost
}

// Filter restricts QuerySales. Zero values mean "no restriction".
type Filter struct {
	AssignedTo      string
	OnlyAssigned    bool      // sales with an assignee only
	From            time.Time // created_at >= From
	Until           time.Time // created_at < Until
	IncludeArchived bool
}

type Repository interface {
	CreateSale(ctx context.Context, s Sale) (Sale, error)
	QuerySales(ctx context.Context, filter Filter) ([]Sale, error)
}
