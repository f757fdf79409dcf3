package customer

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	RegionNorthAmerica = "NA"
	RegionEurope       = "EU"
	RegionAsiaPacific  = "APAC"
	RegionLatinAmerica = "LATAM"
	RegionMiddleEast   = "MENA"
	RegionAfrica       = "AF"
	RegionOther        = "OTHER"
)

const (
	EngagementLow    = "LOW"
	EngagementMedium = "MEDIUM"
	EngagementHigh   = "HIGH"
	EngagementVIP    = "VIP"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
	StatusLead     = "LEAD"
	StatusProspect = "PROSPECT"
)

var (
	Regions          = []string{RegionNorthAmerica, RegionEurope, RegionAsiaPacific, RegionLatinAmerica, RegionMiddleEast, RegionAfrica, RegionOther}
	EngagementLevels = []string{EngagementLow, EngagementMedium, EngagementHigh, EngagementVIP}
	Statuses         = []string{StatusActive, StatusInactive, StatusLead, StatusProspect}

	ErrNotFound = errors.New("customer not found")
)

type Customer struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	Company         string      `json:"company"`
	Region          string      `json:"region"`
	EngagementLevel string      `json:"engagement_level"`
	Status          string      `json:"status"`
	Owner           null.String `json:"owner"`
	LastContactDate null.Time   `json:"last_contact_date"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Filter restricts QueryCustomers. Zero values mean "no restriction".
type Filter struct {
	Owner string
	From  time.Time // created_at >= From
	Until time.Time // created_at < Until
}

type Repository interface {
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	QueryCustomers(ctx context.Context, filter Filter) ([]Customer, error)
}
