package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/sale"
)

const saleColumns = "id, title, customer_id, status, amount, expected_close_date, assigned_to, priority, is_archived, created_at, updated_at"

type saleRow struct {
	ID                string              `db:"id"`
	Title             string              `db:"title"`
	CustomerID        null.String         `db:"customer_id"`
	Status            string              `db:"status"`
	Amount            decimal.NullDecimal `db:"amount"`
	ExpectedCloseDate null.Time           `db:"expected_close_date"`
	AssignedTo        null.String         `db:"assigned_to"`
	Priority          string              `db:"priority"`
	IsArchived        bool                `db:"is_archived"`
	CreatedAt         time.Time           `db:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"`
}

func (r saleRow) sale() sale.Sale {
	return sale.Sale{
		ID:                r.ID,
		Title:             r.Title,
		CustomerID:        r.CustomerID,
		Status:            r.Status,
		Amount:            r.Amount,
		ExpectedCloseDate: utc(r.ExpectedCloseDate),
		AssignedTo:        r.AssignedTo,
		Priority:          r.Priority,
		IsArchived:        r.IsArchived,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type saleRepository struct {
	exec core.DBExecutor
}

var _ sale.Repository = (*saleRepository)(nil) // interface compliance check

func NewSaleRepository(exec core.DBExecutor) *saleRepository {
	return &saleRepository{exec: exec}
}

func (repo saleRepository) CreateSale(ctx context.Context, s sale.Sale) (sale.Sale, error) {
	s.ID = uuid.New().String()
	s.ExpectedCloseDate = utc(s.ExpectedCloseDate)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO sales ("+saleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		s.ID, s.Title, s.CustomerID, s.Status, s.Amount, s.ExpectedCloseDate, s.AssignedTo, s.Priority, s.IsArchived,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return sale.Sale{}, errors.Wrap(err, "inserting sale")
	}
	return s, nil
}

func (repo saleRepository) QuerySales(ctx context.Context, filter sale.Filter) ([]sale.Sale, error) {
	var where conditions
	if filter.AssignedTo != "" {
		where.add("assigned_to = ?", filter.AssignedTo)
	} else if filter.OnlyAssigned {
		where.add("assigned_to IS NOT NULL")
	}
	if !filter.From.IsZero() {
		where.add("created_at >= ?", filter.From.UTC())
	}
	if !filter.Until.IsZero() {
		where.add("created_at < ?", filter.Until.UTC())
	}
	if !filter.IncludeArchived {
		where.add("is_archived = ?", false)
	}

	var rows []saleRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+saleColumns+" FROM sales", where, " ORDER BY created_at, id"); err != nil {
		return nil, errors.Wrap(err, "querying sales")
	}
	sales := make([]sale.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, r.sale())
	}
	return sales, nil
}
