package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"hosiery/backend/internal/barcode"
	"hosiery/backend/internal/cache"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/store"
	"hosiery/backend/internal/xid"
)

// ReceiveStock merges the receipt into the matching cost layer of the
// variant or opens a new layer. A missing selling rate is filled from the
// pricing engine.
func (s *Service) ReceiveStock(ctx context.Context, req domain.ReceiveStockRequest) (domain.ReceiveStockResponse, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Color = strings.TrimSpace(req.Color)
	req.Size = strings.TrimSpace(req.Size)
	if err := s.check(req); err != nil {
		return domain.ReceiveStockResponse{}, err
	}

	variant := domain.Variant{Type: req.Type, Color: req.Color, Size: req.Size}
	ctx, span := s.startSpan(ctx, "ReceiveStock", variantAttrs(variant)...)
	fields := logrus.Fields{"variant": variant.Key(), "quantity": req.Quantity}

	var result *domain.InwardResult
	err := s.withVariantLock(ctx, variant, func() error {
		cmd := domain.InwardCommand{
			Variant:    variant,
			Quantity:   req.Quantity,
			InwardRate: req.InwardRate,
			At:         s.now(),
		}
		if req.SellingRate != nil {
			cmd.SellingRate = *req.SellingRate
		} else {
			existing, err := s.repo.ListVariantBatches(ctx, variant)
			if err != nil {
				return store.AsStorage("list variant batches", err)
			}
			cmd.SellingRate = s.pricing.Suggest(ctx, variant, req.InwardRate, existing).SellingRate
		}

		var err error
		result, err = s.repo.ReceiveStock(ctx, cmd)
		return store.AsStorage("receive stock", err)
	})
	if err != nil {
		return domain.ReceiveStockResponse{}, s.finish(span, "receive stock", fields, err)
	}
	s.invalidate(ctx)

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"batch_id":       result.Batch.ID,
		"transaction_id": result.Transaction.ID,
		"merged":         result.Merged,
	}).Info("stock received")

	batches, err := s.ListAvailableBatches(ctx)
	if err != nil {
		return domain.ReceiveStockResponse{}, s.finish(span, "receive stock", fields, err)
	}
	_ = s.finish(span, "receive stock", fields, nil)

	return domain.ReceiveStockResponse{
		Batches:       batches,
		TransactionID: result.Transaction.ID,
		BatchID:       result.Batch.ID,
		Merged:        result.Merged,
	}, nil
}

// DispatchStock fulfils a sale from the variant's layers, lowest inward
// rate first. Either every touched batch and ledger row is written or none.
func (s *Service) DispatchStock(ctx context.Context, req domain.DispatchStockRequest) (domain.DispatchStockResponse, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Color = strings.TrimSpace(req.Color)
	req.Size = strings.TrimSpace(req.Size)
	req.Remark = strings.TrimSpace(req.Remark)
	if err := s.check(req); err != nil {
		return domain.DispatchStockResponse{}, err
	}

	variant := domain.Variant{Type: req.Type, Color: req.Color, Size: req.Size}
	ctx, span := s.startSpan(ctx, "DispatchStock", append(variantAttrs(variant), attribute.Int("inventory.quantity", req.Quantity))...)
	fields := logrus.Fields{"variant": variant.Key(), "quantity": req.Quantity}

	var result *domain.OutwardResult
	err := s.withVariantLock(ctx, variant, func() error {
		var err error
		result, err = s.repo.DispatchStock(ctx, domain.OutwardCommand{
			Variant:     variant,
			Quantity:    req.Quantity,
			SellingRate: req.SellingRate,
			Discount:    req.Discount,
			Remark:      req.Remark,
			Policy:      s.policy,
			SaleID:      xid.New("sale"),
			At:          s.now(),
		})
		return store.AsStorage("dispatch stock", err)
	})
	if err != nil {
		return domain.DispatchStockResponse{}, s.finish(span, "dispatch stock", fields, err)
	}
	s.invalidate(ctx)

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"sale_id": result.SaleID,
		"rows":    len(result.Transactions),
	}).Info("stock dispatched")

	batches, err := s.ListAvailableBatches(ctx)
	if err != nil {
		return domain.DispatchStockResponse{}, s.finish(span, "dispatch stock", fields, err)
	}
	_ = s.finish(span, "dispatch stock", fields, nil)

	return domain.DispatchStockResponse{
		Batches:      batches,
		SaleID:       result.SaleID,
		Transactions: result.Transactions,
	}, nil
}

func (s *Service) ListAvailableBatches(ctx context.Context) ([]domain.Batch, error) {
	gen, cacheable := s.generation(ctx)
	if cacheable {
		if cached, ok := loadSnapshot[[]domain.Batch](ctx, s, cache.KeyAvailableBatches, gen); ok {
			return nonNil(cached), nil
		}
	}

	batches, err := s.repo.ListAvailableBatches(ctx)
	if err != nil {
		return nil, store.AsStorage("list batches", err)
	}
	batches = nonNil(batches)
	if cacheable {
		storeSnapshot(ctx, s, cache.KeyAvailableBatches, gen, batches)
	}
	return batches, nil
}

// UpdateBatch overwrites a batch's quantity and rates without going through
// the allocator. No ledger row is written; the change is logged with its old
// and new values instead.
func (s *Service) UpdateBatch(ctx context.Context, id string, req domain.UpdateBatchRequest) (domain.Batch, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Batch{}, store.NewValidationError("id", "is required")
	}
	if err := s.check(req); err != nil {
		return domain.Batch{}, err
	}

	ctx, span := s.startSpan(ctx, "UpdateBatch", attribute.String("inventory.batch_id", id))
	fields := logrus.Fields{"batch_id": id}

	old, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return domain.Batch{}, s.finish(span, "update batch", fields, store.AsStorage("get batch", err))
	}

	var updated *domain.Batch
	err = s.withVariantLock(ctx, old.Variant(), func() error {
		var err error
		updated, err = s.repo.UpdateBatch(ctx, domain.BatchUpdate{
			ID:          id,
			Quantity:    *req.Quantity,
			InwardRate:  req.InwardRate,
			SellingRate: req.SellingRate,
			At:          s.now(),
		})
		return store.AsStorage("update batch", err)
	})
	if err != nil {
		return domain.Batch{}, s.finish(span, "update batch", fields, err)
	}
	s.invalidate(ctx)

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"event":            "batch_update",
		"old_quantity":     old.Quantity,
		"new_quantity":     updated.Quantity,
		"old_inward_rate":  old.InwardRate.String(),
		"new_inward_rate":  updated.InwardRate.String(),
		"old_selling_rate": old.SellingRate.String(),
		"new_selling_rate": updated.SellingRate.String(),
	}).Info("batch updated directly")

	_ = s.finish(span, "update batch", fields, nil)
	return *updated, nil
}

// LookupBarcode resolves a scanned code to its variant and the variant's
// available layers. Table barcodes decode directly; other codes are matched
// against stored batches.
func (s *Service) LookupBarcode(ctx context.Context, code string) (domain.BarcodeLookupResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.BarcodeLookupResponse{}, store.NewValidationError("barcode", "is required")
	}

	if v, ok := barcode.Decode(code); ok {
		variant := domain.Variant{Type: v.Type, Color: v.Color, Size: v.Size}
		batches, err := s.repo.ListVariantBatches(ctx, variant)
		if err != nil {
			return domain.BarcodeLookupResponse{}, store.AsStorage("list variant batches", err)
		}
		return domain.BarcodeLookupResponse{Barcode: code[:6], Variant: variant, Batches: nonNil(batches)}, nil
	}

	batches, err := s.repo.FindBatchesByBarcode(ctx, code)
	if err != nil {
		return domain.BarcodeLookupResponse{}, store.AsStorage("find batches by barcode", err)
	}
	if len(batches) == 0 {
		return domain.BarcodeLookupResponse{}, store.NewNotFoundError("barcode", code)
	}
	return domain.BarcodeLookupResponse{Barcode: code, Variant: batches[0].Variant(), Batches: batches}, nil
}

func (s *Service) SuggestSellingRate(ctx context.Context, req domain.SuggestRateRequest) (domain.SuggestRateResponse, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Color = strings.TrimSpace(req.Color)
	req.Size = strings.TrimSpace(req.Size)
	if err := s.check(req); err != nil {
		return domain.SuggestRateResponse{}, err
	}

	variant := domain.Variant{Type: req.Type, Color: req.Color, Size: req.Size}
	existing, err := s.repo.ListVariantBatches(ctx, variant)
	if err != nil {
		return domain.SuggestRateResponse{}, store.AsStorage("list variant batches", err)
	}
	return s.pricing.Suggest(ctx, variant, req.InwardRate, existing), nil
}

func nonNil(batches []domain.Batch) []domain.Batch {
	if batches == nil {
		return []domain.Batch{}
	}
	return batches
}
