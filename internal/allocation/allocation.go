// Package allocation plans how a sale demand is drawn from cost layers. It
// holds no state; stores call it while they hold the candidate rows locked.
package allocation

import (
	"fmt"
	"slices"
	"strings"

	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/money"
	"hosiery/backend/internal/store"
)

// Line is the part of a demand served by one batch.
type Line struct {
	BatchID       string
	Barcode       string
	InwardRate    money.Amount
	Quantity      int
	QuantityAfter int
	Profit        money.Amount
	Discount      money.Amount
}

type Plan struct {
	Lines     []Line
	Available int
}

// Compare orders candidates lowest inward rate first, then least recently
// touched, then oldest created, then id.
func Compare(a, b domain.Batch) int {
	if a.InwardRate != b.InwardRate {
		if a.InwardRate < b.InwardRate {
			return -1
		}
		return 1
	}
	if c := a.LastUpdated.Compare(b.LastUpdated); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Candidates returns the available batches of the variant in dispatch order.
func Candidates(batches []domain.Batch, variant domain.Variant) []domain.Batch {
	out := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Quantity > 0 && b.Variant() == variant {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, Compare)
	return out
}

// PlanDispatch walks the candidates in dispatch order and takes
// min(remaining, batch.quantity) from each until the demand is met. The
// sufficiency check runs before any line is produced, so a failed plan
// describes no mutation at all.
func PlanDispatch(batches []domain.Batch, cmd domain.OutwardCommand) (Plan, error) {
	candidates := Candidates(batches, cmd.Variant)
	if len(candidates) == 0 {
		return Plan{}, store.NewNotFoundError("stock", describe(cmd.Variant))
	}

	available := 0
	for _, b := range candidates {
		available += b.Quantity
	}
	if cmd.Quantity > available {
		return Plan{Available: available}, &store.InsufficientStockError{Requested: cmd.Quantity, Available: available}
	}

	plan := Plan{Available: available, Lines: make([]Line, 0, len(candidates))}
	remaining := cmd.Quantity
	for _, b := range candidates {
		if remaining == 0 {
			break
		}
		qty := min(remaining, b.Quantity)
		profit, err := (cmd.SellingRate - b.InwardRate).MulChecked(qty)
		if err != nil {
			return Plan{Available: available}, store.NewValidationError("selling_rate", "profit is out of range")
		}
		plan.Lines = append(plan.Lines, Line{
			BatchID:       b.ID,
			Barcode:       b.Barcode,
			InwardRate:    b.InwardRate,
			Quantity:      qty,
			QuantityAfter: b.Quantity - qty,
			Profit:        profit,
		})
		remaining -= qty
	}

	splitDiscount(plan.Lines, cmd.Discount, cmd.Policy, cmd.Quantity)
	return plan, nil
}

func splitDiscount(lines []Line, discount money.Amount, policy domain.DiscountPolicy, total int) {
	if policy != domain.DiscountProrate {
		for i := range lines {
			lines[i].Discount = discount
		}
		return
	}
	if total < 1 || len(lines) == 0 {
		return
	}
	assigned := money.Amount(0)
	for i := range lines {
		if i == len(lines)-1 {
			lines[i].Discount = discount - assigned
			break
		}
		share := discount * money.Amount(lines[i].Quantity) / money.Amount(total)
		lines[i].Discount = share
		assigned += share
	}
}

// Transaction builds the outward ledger row for a plan line.
func (l Line) Transaction(id string, cmd domain.OutwardCommand) domain.Transaction {
	profit := l.Profit
	return domain.Transaction{
		ID:          id,
		InventoryID: l.BatchID,
		Type:        domain.TransactionOutward,
		Quantity:    l.Quantity,
		Rate:        cmd.SellingRate,
		Discount:    l.Discount,
		Remark:      cmd.Remark,
		Barcode:     l.Barcode,
		Profit:      &profit,
		SaleID:      cmd.SaleID,
		Date:        cmd.At,
	}
}

// MatchLayer returns the index of the batch of the variant whose inward and
// selling rates both lie within money.Epsilon of the receipt, or -1.
func MatchLayer(batches []domain.Batch, cmd domain.InwardCommand) int {
	for i, b := range batches {
		if sameLayer(b, cmd.Variant, cmd.InwardRate, cmd.SellingRate) {
			return i
		}
	}
	return -1
}

// ConflictingLayer returns the index of a batch other than target that
// target's rates would fold into, or -1. Two such layers could never merge
// again.
func ConflictingLayer(batches []domain.Batch, target domain.Batch) int {
	for i, b := range batches {
		if b.ID != target.ID && sameLayer(b, target.Variant(), target.InwardRate, target.SellingRate) {
			return i
		}
	}
	return -1
}

// CheckUpdate rejects a direct correction that would collide with another
// layer of the same variant or overfill the batch.
func CheckUpdate(layers []domain.Batch, updated domain.Batch) error {
	if updated.Quantity > domain.MaxBatchQuantity {
		return store.NewValidationError("quantity", fmt.Sprintf("must be at most %d", domain.MaxBatchQuantity))
	}
	if idx := ConflictingLayer(layers, updated); idx >= 0 {
		return store.NewValidationError("inward_rate", fmt.Sprintf("rates match existing batch %s of the same variant", layers[idx].ID))
	}
	return nil
}

// Merge adds a receipt to a layer's quantity.
func Merge(current, received int) (int, error) {
	if received < 1 {
		return 0, store.NewValidationError("quantity", "must be at least 1")
	}
	if received > domain.MaxBatchQuantity || current > domain.MaxBatchQuantity-received {
		return 0, store.NewValidationError("quantity", fmt.Sprintf("batch would hold more than %d units", domain.MaxBatchQuantity))
	}
	return current + received, nil
}

func sameLayer(b domain.Batch, variant domain.Variant, inward, selling money.Amount) bool {
	return b.Variant() == variant && money.SameLayer(b.InwardRate, inward) && money.SameLayer(b.SellingRate, selling)
}

func describe(v domain.Variant) string {
	return v.Type + "/" + v.Color + "/" + v.Size
}
