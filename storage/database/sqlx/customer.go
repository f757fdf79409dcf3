package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/customer"
)

const customerColumns = "id, name, email, phone, company, region, engagement_level, status, owner_id, last_contact_date, " +
	"is_active, created_at, updated_at"

type customerRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Email           string      `db:"email"`
	Phone           string      `db:"phone"`
	Company         string      `db:"company"`
	Region          string      `db:"region"`
	EngagementLevel string      `db:"engagement_level"`
	Status          string      `db:"status"`
	OwnerID         null.String `db:"owner_id"`
	LastContactDate null.Time   `db:"last_contact_date"`
	IsActive        bool        `db:"is_active"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r customerRow) customer() customer.Customer {
	return customer.Customer{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Company:         r.Company,
		Region:          r.Region,
		EngagementLevel: r.EngagementLevel,
		Status:          r.Status,
		Owner:           r.OwnerID,
		LastContactDate: utc(r.LastContactDate),
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type customerRepository struct {
	exec core.DBExecutor
}

var _ customer.Repository = (*customerRepository)(nil) // interface compliance check

func NewCustomerRepository(exec core.DBExecutor) *customerRepository {
	return &customerRepository{exec: exec}
}

func (repo customerRepository) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.ID = uuid.New().String()
	c.LastContactDate = utc(c.LastContactDate)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO customers ("+customerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Region, c.EngagementLevel, c.Status, c.Owner, c.LastContactDate,
		c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return customer.Customer{}, errors.Wrap(err, "inserting customer")
	}
	return c, nil
}

func (repo customerRepository) QueryCustomers(ctx context.Context, filter customer.Filter) ([]customer.Customer, error) {
	var where conditions
	if filter.Owner != "" {
		where.add("owner_id = ?", filter.Owner)
	}
	if !filter.From.IsZero() {
		where.add("created_at >= ?", filter.From.UTC())
	}
	if !filter.Until.IsZero() {
		where.add("created_at < ?", filter.Until.UTC())
	}

	var rows []customerRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+customerColumns+" FROM customers", where, " ORDER BY created_at, id"); err != nil {
		return nil, errors.Wrap(err, "querying customers")
	}
	customers := make([]customer.Customer, 0, len(rows))
	for _, r := range rows {
		customers = append(customers, r.customer())
	}
	return customers, nil
}
