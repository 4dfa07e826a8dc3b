package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/money"
)

type ledgerRow struct {
	domain.Transaction
	ItemType        sql.NullString `db:"item_type"`
	ItemColor       sql.NullString `db:"item_color"`
	ItemSize        sql.NullString `db:"item_size"`
	ItemInwardRate  sql.NullInt64  `db:"item_inward_rate"`
	ItemSellingRate sql.NullInt64  `db:"item_selling_rate"`
}

func (r ledgerRow) view() domain.TransactionView {
	r.Date = r.Date.UTC()
	if !r.ItemType.Valid {
		return domain.NewTransactionView(r.Transaction, nil)
	}
	return domain.NewTransactionView(r.Transaction, &domain.Batch{
		ID:          r.InventoryID,
		Type:        r.ItemType.String,
		Color:       r.ItemColor.String,
		Size:        r.ItemSize.String,
		InwardRate:  money.Amount(r.ItemInwardRate.Int64),
		SellingRate: money.Amount(r.ItemSellingRate.Int64),
	})
}

// ListTransactions returns ledger rows newest first, joined with the
// attributes of the batch each row touched.
func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionView, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if filter.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, filter.Type)
	}
	if filter.InventoryID != "" {
		where = append(where, "t.inventory_id = ?")
		args = append(args, filter.InventoryID)
	}
	if filter.From != nil {
		where = append(where, "t.date >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "t.date <= ?")
		args = append(args, filter.To.UTC())
	}

	query := `
		SELECT t.id, t.inventory_id, t.type, t.quantity, t.rate, t.discount, t.remark,
			t.barcode, t.profit, t.sale_id, t.date,
			b.type AS item_type, b.color AS item_color, b.size AS item_size,
			b.inward_rate AS item_inward_rate, b.selling_rate AS item_selling_rate
		FROM transactions t
		LEFT JOIN batches b ON b.id = t.inventory_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY t.date DESC, t.id DESC"
	query, args = s.dialect.window(query, args, filter.Offset, filter.Limit)

	rows := make([]ledgerRow, 0, 64)
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, wrap("list transactions", err)
	}

	views := make([]domain.TransactionView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	return views, nil
}
