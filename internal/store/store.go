package store

import (
	"context"

	"hosiery/backend/internal/domain"
)

// Repository persists batches and the transaction ledger. ReceiveStock and
// DispatchStock are atomic: either every batch write and ledger row of the
// call is durable or none is.
type Repository interface {
	ListAvailableBatches(ctx context.Context) ([]domain.Batch, error)
	ListVariantBatches(ctx context.Context, variant domain.Variant) ([]domain.Batch, error)
	FindBatchesByBarcode(ctx context.Context, code string) ([]domain.Batch, error)
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	ReceiveStock(ctx context.Context, cmd domain.InwardCommand) (*domain.InwardResult, error)
	DispatchStock(ctx context.Context, cmd domain.OutwardCommand) (*domain.OutwardResult, error)
	UpdateBatch(ctx context.Context, update domain.BatchUpdate) (*domain.Batch, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionView, error)
	GetStockTotals(ctx context.Context) (domain.StockTotals, error)
}

// Page applies a ledger window to rows already in listing order. A zero
// limit returns every row after offset.
func Page[T any](rows []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
