package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"hosiery/backend/internal/allocation"
	"hosiery/backend/internal/barcode"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/money"
	"hosiery/backend/internal/store"
	"hosiery/backend/internal/xid"
)

// Store keeps batches and the ledger in process. Every mutating call holds
// the write lock across its whole read-plan-apply sequence, which gives the
// same all-or-nothing behaviour as a SQL transaction.
type Store struct {
	mu           sync.RWMutex
	batchesByID  map[string]*domain.Batch
	batchOrder   []string
	transactions []domain.Transaction
}

func New() *Store {
	return &Store{
		batchesByID:  make(map[string]*domain.Batch),
		batchOrder:   make([]string, 0, 64),
		transactions: make([]domain.Transaction, 0, 256),
	}
}

// NewSeeded returns a store preloaded with a few cost layers for demos.
func NewSeeded() *Store {
	s := New()
	at := time.Now().UTC().Add(-72 * time.Hour)
	seed := []domain.InwardCommand{
		{Variant: domain.Variant{Type: "Plain", Color: "Navy Blue", Size: "32"}, Quantity: 40, InwardRate: money.FromUnits(120), SellingRate: money.FromUnits(145)},
		{Variant: domain.Variant{Type: "Plain", Color: "Navy Blue", Size: "32"}, Quantity: 25, InwardRate: money.FromUnits(125), SellingRate: money.FromUnits(150)},
		{Variant: domain.Variant{Type: "Plain", Color: "White", Size: "24"}, Quantity: 30, InwardRate: money.FromUnits(95), SellingRate: money.FromUnits(115)},
		{Variant: domain.Variant{Type: "Dora", Color: "Red+White", Size: "26"}, Quantity: 18, InwardRate: money.FromUnits(140), SellingRate: money.FromUnits(170)},
		{Variant: domain.Variant{Type: "Zipper", Color: "Black", Size: "38"}, Quantity: 12, InwardRate: money.FromUnits(210), SellingRate: money.FromUnits(240)},
	}
	for i, cmd := range seed {
		cmd.At = at.Add(time.Duration(i) * time.Minute)
		_, _ = s.receiveLocked(cmd)
	}
	return s
}

func (s *Store) ListAvailableBatches(_ context.Context) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Batch, 0, len(s.batchOrder))
	for _, id := range s.batchOrder {
		b := s.batchesByID[id]
		if b.Available() {
			result = append(result, *b)
		}
	}
	slices.SortFunc(result, compareForListing)
	return result, nil
}

func (s *Store) ListVariantBatches(_ context.Context, variant domain.Variant) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return allocation.Candidates(s.snapshotLocked(), variant), nil
}

func (s *Store) FindBatchesByBarcode(_ context.Context, code string) ([]domain.Batch, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Batch, 0, 4)
	for _, id := range s.batchOrder {
		b := s.batchesByID[id]
		if b.Available() && strings.EqualFold(b.Barcode, code) {
			result = append(result, *b)
		}
	}
	slices.SortFunc(result, allocation.Compare)
	return result, nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batchesByID[id]
	if !ok {
		return nil, store.NewNotFoundError("batch", id)
	}
	dup := *b
	return &dup, nil
}

func (s *Store) ReceiveStock(_ context.Context, cmd domain.InwardCommand) (*domain.InwardResult, error) {
	if cmd.Quantity < 1 {
		return nil, store.NewValidationError("quantity", "must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.receiveLocked(cmd)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) receiveLocked(cmd domain.InwardCommand) (domain.InwardResult, error) {
	if cmd.At.IsZero() {
		cmd.At = time.Now().UTC()
	}

	var (
		target *domain.Batch
		merged bool
	)
	layers := s.variantLocked(cmd.Variant)
	if idx := allocation.MatchLayer(layers, cmd); idx >= 0 {
		target = s.batchesByID[layers[idx].ID]
		quantity, err := allocation.Merge(target.Quantity, cmd.Quantity)
		if err != nil {
			return domain.InwardResult{}, err
		}
		target.Quantity = quantity
		target.LastUpdated = cmd.At
		merged = true
	} else {
		if _, err := allocation.Merge(0, cmd.Quantity); err != nil {
			return domain.InwardResult{}, err
		}
		id := xid.New("bat")
		target = &domain.Batch{
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
		s.batchesByID[id] = target
		s.batchOrder = append(s.batchOrder, id)
	}

	tx := domain.Transaction{
		ID:          xid.New("txn"),
		InventoryID: target.ID,
		Type:        domain.TransactionInward,
		Quantity:    cmd.Quantity,
		Rate:        cmd.InwardRate,
		Barcode:     target.Barcode,
		Date:        cmd.At,
	}
	s.transactions = append(s.transactions, tx)

	return domain.InwardResult{Batch: *target, Transaction: tx, Merged: merged}, nil
}

func (s *Store) DispatchStock(_ context.Context, cmd domain.OutwardCommand) (*domain.OutwardResult, error) {
	if cmd.Quantity < 1 {
		return nil, store.NewValidationError("quantity", "must be at least 1")
	}
	if cmd.At.IsZero() {
		cmd.At = time.Now().UTC()
	}
	if cmd.SaleID == "" {
		cmd.SaleID = xid.New("sale")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := allocation.PlanDispatch(s.variantLocked(cmd.Variant), cmd)
	if err != nil {
		return nil, err
	}

	result := &domain.OutwardResult{SaleID: cmd.SaleID, Transactions: make([]domain.Transaction, 0, len(plan.Lines))}
	for _, line := range plan.Lines {
		b := s.batchesByID[line.BatchID]
		b.Quantity = line.QuantityAfter
		b.LastUpdated = cmd.At

		tx := line.Transaction(xid.New("txn"), cmd)
		s.transactions = append(s.transactions, tx)
		result.Transactions = append(result.Transactions, cloneTransaction(tx))
	}
	return result, nil
}

func (s *Store) UpdateBatch(_ context.Context, update domain.BatchUpdate) (*domain.Batch, error) {
	if update.Quantity < 0 {
		return nil, store.NewValidationError("quantity", "must not be negative")
	}
	if update.At.IsZero() {
		update.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batchesByID[update.ID]
	if !ok {
		return nil, store.NewNotFoundError("batch", update.ID)
	}
	next := *b
	next.Quantity = update.Quantity
	next.InwardRate = update.InwardRate
	next.SellingRate = update.SellingRate
	if err := allocation.CheckUpdate(s.variantLocked(b.Variant()), next); err != nil {
		return nil, err
	}
	b.Quantity = update.Quantity
	b.InwardRate = update.InwardRate
	b.SellingRate = update.SellingRate
	b.LastUpdated = update.At

	dup := *b
	return &dup, nil
}

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.InventoryID != "" && tx.InventoryID != filter.InventoryID {
			continue
		}
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.Date.After(*filter.To) {
			continue
		}
		matched = append(matched, tx)
	}

	slices.SortFunc(matched, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	matched = store.Page(matched, filter.Offset, filter.Limit)

	views := make([]domain.TransactionView, 0, len(matched))
	for _, tx := range matched {
		views = append(views, domain.NewTransactionView(cloneTransaction(tx), s.batchesByID[tx.InventoryID]))
	}
	return views, nil
}

func (s *Store) GetStockTotals(_ context.Context) (domain.StockTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		totals domain.StockTotals
		err    error
	)
	for _, b := range s.batchesByID {
		sell, errSell := b.SellingRate.MulChecked(b.Quantity)
		cost, errCost := b.InwardRate.MulChecked(b.Quantity)
		if errSell != nil || errCost != nil {
			return domain.StockTotals{}, fmt.Errorf("stock value of batch %s: %w", b.ID, money.ErrOutOfRange)
		}
		if totals.StockSellValue, err = money.Add(totals.StockSellValue, sell); err != nil {
			return domain.StockTotals{}, fmt.Errorf("stock sell value: %w", err)
		}
		if totals.StockCostValue, err = money.Add(totals.StockCostValue, cost); err != nil {
			return domain.StockTotals{}, fmt.Errorf("stock cost value: %w", err)
		}
	}
	for _, tx := range s.transactions {
		if tx.Type != domain.TransactionOutward {
			continue
		}
		if tx.Profit != nil {
			if totals.OutwardProfit, err = money.Add(totals.OutwardProfit, *tx.Profit); err != nil {
				return domain.StockTotals{}, fmt.Errorf("outward profit: %w", err)
			}
		}
		if totals.OutwardDiscount, err = money.Add(totals.OutwardDiscount, tx.Discount); err != nil {
			return domain.StockTotals{}, fmt.Errorf("outward discount: %w", err)
		}
	}
	return totals, nil
}

func (s *Store) snapshotLocked() []domain.Batch {
	result := make([]domain.Batch, 0, len(s.batchOrder))
	for _, id := range s.batchOrder {
		result = append(result, *s.batchesByID[id])
	}
	return result
}

// variantLocked returns every batch of the variant, including empty ones.
func (s *Store) variantLocked(variant domain.Variant) []domain.Batch {
	result := make([]domain.Batch, 0, 4)
	for _, id := range s.batchOrder {
		b := s.batchesByID[id]
		if b.Variant() == variant {
			result = append(result, *b)
		}
	}
	return result
}

func compareForListing(a, b domain.Batch) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Color, b.Color); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Size, b.Size); c != 0 {
		return c
	}
	return allocation.Compare(a, b)
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dup := src
	if src.Profit != nil {
		profit := *src.Profit
		dup.Profit = &profit
	}
	return dup
}
