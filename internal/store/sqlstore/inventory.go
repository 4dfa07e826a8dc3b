package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"hosiery/backend/internal/allocation"
	"hosiery/backend/internal/barcode"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/store"
	"hosiery/backend/internal/xid"
)

const batchColumns = `id, type, color, size, quantity, inward_rate, selling_rate, barcode, created_at, last_updated`

const candidateOrder = `inward_rate ASC, last_updated ASC, created_at ASC, id ASC`

func (s *Store) ListAvailableBatches(ctx context.Context) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, 64)
	err := s.db.SelectContext(ctx, &batches, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE quantity > 0
		ORDER BY type, color, size, `+candidateOrder)
	if err != nil {
		return nil, wrap("list batches", err)
	}
	return normalizeBatches(batches), nil
}

func (s *Store) ListVariantBatches(ctx context.Context, variant domain.Variant) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, 4)
	err := s.db.SelectContext(ctx, &batches, s.db.Rebind(`
		SELECT `+batchColumns+`
		FROM batches
		WHERE type = ? AND color = ? AND size = ? AND quantity > 0
		ORDER BY `+candidateOrder), variant.Type, variant.Color, variant.Size)
	if err != nil {
		return nil, wrap("list variant batches", err)
	}
	return normalizeBatches(batches), nil
}

func (s *Store) FindBatchesByBarcode(ctx context.Context, code string) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, 4)
	err := s.db.SelectContext(ctx, &batches, s.db.Rebind(`
		SELECT `+batchColumns+`
		FROM batches
		WHERE UPPER(barcode) = ? AND quantity > 0
		ORDER BY `+candidateOrder), strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, wrap("find batches by barcode", err)
	}
	return normalizeBatches(batches), nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var b domain.Batch
	err := s.db.GetContext(ctx, &b, s.db.Rebind(`SELECT `+batchColumns+` FROM batches WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewNotFoundError("batch", id)
		}
		return nil, wrap("get batch", err)
	}
	normalizeBatch(&b)
	return &b, nil
}

// ReceiveStock locks every layer of the variant, then either increments the
// matching layer or inserts a new one, and logs the inward row in the same
// transaction.
func (s *Store) ReceiveStock(ctx context.Context, cmd domain.InwardCommand) (*domain.InwardResult, error) {
	if cmd.Quantity < 1 {
		return nil, store.NewValidationError("quantity", "must be at least 1")
	}
	cmd.At = stamp(cmd.At)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, wrap("receive stock", err)
	}
	defer func() { _ = tx.Rollback() }()

	layers, err := lockVariant(ctx, tx, cmd.Variant)
	if err != nil {
		return nil, wrap("receive stock", err)
	}

	var (
		target domain.Batch
		merged bool
	)
	if idx := allocation.MatchLayer(layers, cmd); idx >= 0 {
		target = layers[idx]
		quantity, err := allocation.Merge(target.Quantity, cmd.Quantity)
		if err != nil {
			return nil, err
		}
		target.Quantity = quantity
		target.LastUpdated = cmd.At
		merged = true
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE batches SET quantity = quantity + ?, last_updated = ? WHERE id = ?
		`), cmd.Quantity, cmd.At, target.ID); err != nil {
			return nil, wrap("receive stock", err)
		}
	} else {
		if _, err := allocation.Merge(0, cmd.Quantity); err != nil {
			return nil, err
		}
		id := xid.New("bat")
		target = domain.Batch{
			ID:          id,
			Type:        cmd.Type,
			Color:       cmd.Color,
			Size:        cmd.Size,
			Quantity:    cmd.Quantity,
			InwardRate:  cmd.InwardRate,
			SellingRate: cmd.SellingRate,
			Barcode:     barcode.Encode(cmd.Type, cmd.Color, cmd.Size, xid.Suffix(id, 6)),
			CreatedAt:   cmd.At,
			LastUpdated: cmd.At,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO batches (`+batchColumns+`)
			VALUES (:id, :type, :color, :size, :quantity, :inward_rate, :selling_rate, :barcode, :created_at, :last_updated)
		`, target); err != nil {
			return nil, wrap("receive stock", err)
		}
	}

	entry := domain.Transaction{
		ID:          xid.New("txn"),
		InventoryID: target.ID,
		Type:        domain.TransactionInward,
		Quantity:    cmd.Quantity,
		Rate:        cmd.InwardRate,
		Barcode:     target.Barcode,
		Date:        cmd.At,
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return nil, wrap("receive stock", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap("receive stock", err)
	}
	return &domain.InwardResult{Batch: target, Transaction: entry, Merged: merged}, nil
}

// DispatchStock runs the whole sale in one serializable transaction with the
// candidate rows locked in allocation order.
func (s *Store) DispatchStock(ctx context.Context, cmd domain.OutwardCommand) (*domain.OutwardResult, error) {
	if cmd.Quantity < 1 {
		return nil, store.NewValidationError("quantity", "must be at least 1")
	}
	cmd.At = stamp(cmd.At)
	if cmd.SaleID == "" {
		cmd.SaleID = xid.New("sale")
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, wrap("dispatch stock", err)
	}
	defer func() { _ = tx.Rollback() }()

	layers, err := lockVariant(ctx, tx, cmd.Variant)
	if err != nil {
		return nil, wrap("dispatch stock", err)
	}

	plan, err := allocation.PlanDispatch(layers, cmd)
	if err != nil {
		return nil, err
	}

	result := &domain.OutwardResult{SaleID: cmd.SaleID, Transactions: make([]domain.Transaction, 0, len(plan.Lines))}
	for _, line := range plan.Lines {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE batches SET quantity = quantity - ?, last_updated = ?
			WHERE id = ? AND quantity >= ?
		`), line.Quantity, cmd.At, line.BatchID, line.Quantity)
		if err != nil {
			return nil, wrap("dispatch stock", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, wrap("dispatch stock", err)
		}
		if affected != 1 {
			return nil, store.NewStorageError("dispatch stock", errors.New("batch changed during dispatch: "+line.BatchID))
		}

		entry := line.Transaction(xid.New("txn"), cmd)
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return nil, wrap("dispatch stock", err)
		}
		result.Transactions = append(result.Transactions, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap("dispatch stock", err)
	}
	return result, nil
}

func (s *Store) UpdateBatch(ctx context.Context, update domain.BatchUpdate) (*domain.Batch, error) {
	if update.Quantity < 0 {
		return nil, store.NewValidationError("quantity", "must not be negative")
	}
	update.At = stamp(update.At)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, wrap("update batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Batch
	err = tx.GetContext(ctx, &current, tx.Rebind(`
		SELECT `+batchColumns+` FROM batches WHERE id = ? FOR UPDATE
	`), update.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewNotFoundError("batch", update.ID)
	}
	if err != nil {
		return nil, wrap("update batch", err)
	}
	normalizeBatch(&current)
	layers, err := lockVariant(ctx, tx, current.Variant())
	if err != nil {
		return nil, wrap("update batch", err)
	}

	next := current
	next.Quantity = update.Quantity
	next.InwardRate = update.InwardRate
	next.SellingRate = update.SellingRate
	next.LastUpdated = update.At
	if err := allocation.CheckUpdate(layers, next); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE batches
		SET quantity = ?, inward_rate = ?, selling_rate = ?, last_updated = ?
		WHERE id = ?
	`), update.Quantity, update.InwardRate, update.SellingRate, update.At, update.ID)
	if err != nil {
		return nil, wrap("update batch", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrap("update batch", err)
	}
	if affected == 0 {
		return nil, store.NewNotFoundError("batch", update.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap("update batch", err)
	}
	return &next, nil
}

func (s *Store) GetStockTotals(ctx context.Context) (domain.StockTotals, error) {
	var totals domain.StockTotals
	row := s.db.QueryRowxContext(ctx, `
		SELECT `+s.dialect.bigint("SUM(quantity * selling_rate)")+`, `+s.dialect.bigint("SUM(quantity * inward_rate)")+`
		FROM batches
	`)
	if err := row.Scan(&totals.StockSellValue, &totals.StockCostValue); err != nil {
		return domain.StockTotals{}, wrap("stock totals", err)
	}

	row = s.db.QueryRowxContext(ctx, s.db.Rebind(`
		SELECT `+s.dialect.bigint("SUM(profit)")+`, `+s.dialect.bigint("SUM(discount)")+`
		FROM transactions
		WHERE type = ?
	`), domain.TransactionOutward)
	if err := row.Scan(&totals.OutwardProfit, &totals.OutwardDiscount); err != nil {
		return domain.StockTotals{}, wrap("stock totals", err)
	}
	return totals, nil
}

// lockVariant reads every layer of the variant, empty ones included, with
// row locks held until the transaction ends.
func lockVariant(ctx context.Context, tx *sqlx.Tx, variant domain.Variant) ([]domain.Batch, error) {
	layers := make([]domain.Batch, 0, 4)
	err := tx.SelectContext(ctx, &layers, tx.Rebind(`
		SELECT `+batchColumns+`
		FROM batches
		WHERE type = ? AND color = ? AND size = ?
		ORDER BY `+candidateOrder+`
		FOR UPDATE
	`), variant.Type, variant.Color, variant.Size)
	if err != nil {
		return nil, err
	}
	return normalizeBatches(layers), nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, entry domain.Transaction) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO transactions (id, inventory_id, type, quantity, rate, discount, remark, barcode, profit, sale_id, date)
		VALUES (:id, :inventory_id, :type, :quantity, :rate, :discount, :remark, :barcode, :profit, :sale_id, :date)
	`, entry)
	return err
}

func stamp(at time.Time) time.Time {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Truncate(time.Microsecond)
}

func normalizeBatch(b *domain.Batch) {
	b.CreatedAt = b.CreatedAt.UTC()
	b.LastUpdated = b.LastUpdated.UTC()
}

func normalizeBatches(batches []domain.Batch) []domain.Batch {
	for i := range batches {
		normalizeBatch(&batches[i])
	}
	return batches
}
