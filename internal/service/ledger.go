package service

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"hosiery/backend/internal/cache"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/report"
	"hosiery/backend/internal/store"
)

// ListTransactions returns ledger rows newest first, joined with their batch.
// Without a limit every matching row is returned.
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.TransactionView, error) {
	if err := checkFilter(&filter); err != nil {
		return nil, err
	}

	views, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, store.AsStorage("list transactions", err)
	}
	if views == nil {
		views = []domain.TransactionView{}
	}
	return views, nil
}

// GetMetrics derives profit figures from current stock and the outward
// ledger:
//
//	profit_potential = Σ qty*selling_rate - Σ qty*inward_rate over all batches
//	profit_earned    = Σ outward profit - Σ outward discount
func (s *Service) GetMetrics(ctx context.Context) (domain.Metrics, error) {
	gen, cacheable := s.generation(ctx)
	if cacheable {
		if cached, ok := loadSnapshot[domain.Metrics](ctx, s, cache.KeyMetrics, gen); ok {
			return cached, nil
		}
	}

	ctx, span := s.startSpan(ctx, "GetMetrics")
	totals, err := s.repo.GetStockTotals(ctx)
	if err != nil {
		return domain.Metrics{}, s.finish(span, "get metrics", nil, store.AsStorage("stock totals", err))
	}
	_ = s.finish(span, "get metrics", nil, nil)

	metrics := ComputeMetrics(totals)
	if cacheable {
		storeSnapshot(ctx, s, cache.KeyMetrics, gen, metrics)
	}
	return metrics, nil
}

func ComputeMetrics(t domain.StockTotals) domain.Metrics {
	return domain.Metrics{
		ProfitPotential: t.StockSellValue - t.StockCostValue,
		ProfitEarned:    t.OutwardProfit - t.OutwardDiscount,
	}
}

// ExportLedger writes the filtered ledger to w as an XLSX workbook.
func (s *Service) ExportLedger(ctx context.Context, filter domain.TransactionFilter, w io.Writer) error {
	views, err := s.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}

	_, span := s.startSpan(ctx, "ExportLedger")
	err = report.WriteLedger(w, views)
	return s.finish(span, "export ledger", logrus.Fields{"rows": len(views)}, err)
}

func checkFilter(filter *domain.TransactionFilter) error {
	switch filter.Type {
	case "", domain.TransactionInward, domain.TransactionOutward:
	default:
		return store.NewValidationError("type", "must be inward or outward")
	}
	if filter.Limit < 0 {
		return store.NewValidationError("limit", "must not be negative")
	}
	if filter.Offset < 0 {
		return store.NewValidationError("offset", "must not be negative")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return store.NewValidationError("from", "must not be after to")
	}
	return nil
}
