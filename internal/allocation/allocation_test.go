package allocation

import (
	"errors"
	"math"
	"testing"
	"time"

	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/money"
	"hosiery/backend/internal/store"
)

var plainNavyM = domain.Variant{Type: "Plain", Color: "Navy Blue", Size: "M"}

func batch(id string, inward string, qty int, touched time.Time) domain.Batch {
	return domain.Batch{
		ID:          id,
		Type:        plainNavyM.Type,
		Color:       plainNavyM.Color,
		Size:        plainNavyM.Size,
		Quantity:    qty,
		InwardRate:  money.MustParse(inward),
		SellingRate: money.MustParse("20"),
		Barcode:     "P01S04",
		CreatedAt:   touched,
		LastUpdated: touched,
	}
}

func TestPlanDispatchLowestRateThenOldest(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	batches := []domain.Batch{
		batch("C", "12", 5, t1),
		batch("B", "10", 5, t2),
		batch("A", "10", 5, t1),
	}

	plan, err := PlanDispatch(batches, domain.OutwardCommand{
		Variant:     plainNavyM,
		Quantity:    8,
		SellingRate: money.MustParse("15"),
	})
	if err != nil {
		t.Fatalf("plan dispatch: %v", err)
	}
	if len(plan.Lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(plan.Lines))
	}
	if plan.Lines[0].BatchID != "A" || plan.Lines[0].Quantity != 5 || plan.Lines[0].QuantityAfter != 0 {
		t.Fatalf("unexpected first line: %+v", plan.Lines[0])
	}
	if plan.Lines[1].BatchID != "B" || plan.Lines[1].Quantity != 3 || plan.Lines[1].QuantityAfter != 2 {
		t.Fatalf("unexpected second line: %+v", plan.Lines[1])
	}
	if plan.Available != 15 {
		t.Fatalf("expected 15 available, got %d", plan.Available)
	}
}

func TestPlanDispatchInsufficientReportsAvailable(t *testing.T) {
	now := time.Now()
	batches := []domain.Batch{batch("A", "10", 4, now), batch("B", "11", 3, now)}

	plan, err := PlanDispatch(batches, domain.OutwardCommand{Variant: plainNavyM, Quantity: 8, SellingRate: money.MustParse("15")})
	var insufficient *store.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if insufficient.Available != 7 || insufficient.Requested != 8 {
		t.Fatalf("unexpected error payload: %+v", insufficient)
	}
	if len(plan.Lines) != 0 {
		t.Fatalf("expected no lines on failure, got %d", len(plan.Lines))
	}
	if batches[0].Quantity != 4 || batches[1].Quantity != 3 {
		t.Fatalf("input batches must not be mutated")
	}
}

func TestPlanDispatchNoCandidates(t *testing.T) {
	empty := batch("A", "10", 0, time.Now())
	other := batch("B", "10", 5, time.Now())
	other.Size = "L"

	_, err := PlanDispatch([]domain.Batch{empty, other}, domain.OutwardCommand{Variant: plainNavyM, Quantity: 1, SellingRate: 100})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPlanDispatchProfitUsesBatchInwardRate(t *testing.T) {
	plan, err := PlanDispatch([]domain.Batch{batch("A", "100", 10, time.Now())}, domain.OutwardCommand{
		Variant:     plainNavyM,
		Quantity:    3,
		SellingRate: money.MustParse("150"),
	})
	if err != nil {
		t.Fatalf("plan dispatch: %v", err)
	}
	if plan.Lines[0].Profit != money.MustParse("150") {
		t.Fatalf("expected profit 150, got %s", plan.Lines[0].Profit)
	}
}

func TestPlanDispatchLossIsNegative(t *testing.T) {
	plan, err := PlanDispatch([]domain.Batch{batch("A", "100", 10, time.Now())}, domain.OutwardCommand{
		Variant:     plainNavyM,
		Quantity:    2,
		SellingRate: money.MustParse("90"),
	})
	if err != nil {
		t.Fatalf("plan dispatch: %v", err)
	}
	if plan.Lines[0].Profit != money.MustParse("-20") {
		t.Fatalf("expected profit -20, got %s", plan.Lines[0].Profit)
	}
}

func TestDiscountPolicies(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	batches := []domain.Batch{batch("A", "10", 1, t1), batch("B", "10", 2, t1.Add(time.Minute))}
	cmd := domain.OutwardCommand{
		Variant:     plainNavyM,
		Quantity:    3,
		SellingRate: money.MustParse("15"),
		Discount:    money.MustParse("10"),
	}

	cmd.Policy = domain.DiscountFull
	plan, err := PlanDispatch(batches, cmd)
	if err != nil {
		t.Fatalf("plan full: %v", err)
	}
	for _, line := range plan.Lines {
		if line.Discount != cmd.Discount {
			t.Fatalf("expected full discount on %s, got %s", line.BatchID, line.Discount)
		}
	}

	cmd.Policy = domain.DiscountProrate
	plan, err = PlanDispatch(batches, cmd)
	if err != nil {
		t.Fatalf("plan prorate: %v", err)
	}
	if plan.Lines[0].Discount != money.MustParse("3.33") {
		t.Fatalf("expected 3.33 on first line, got %s", plan.Lines[0].Discount)
	}
	if plan.Lines[1].Discount != money.MustParse("6.67") {
		t.Fatalf("expected remainder 6.67 on last line, got %s", plan.Lines[1].Discount)
	}
}

func TestMatchLayerTolerance(t *testing.T) {
	b := batch("A", "10", 5, time.Now())
	cmd := domain.InwardCommand{
		Variant:     plainNavyM,
		Quantity:    1,
		InwardRate:  money.MustParse("10.01"),
		SellingRate: money.MustParse("19.99"),
	}
	if MatchLayer([]domain.Batch{b}, cmd) != 0 {
		t.Fatalf("expected rates within 0.01 to match")
	}
	cmd.InwardRate = money.MustParse("10.02")
	if MatchLayer([]domain.Batch{b}, cmd) != -1 {
		t.Fatalf("expected 0.02 apart to be a new layer")
	}
}

func TestLineTransaction(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	line := Line{BatchID: "A", Barcode: "P01S04", Quantity: 2, Profit: 300, Discount: 50}
	tx := line.Transaction("txn-1", domain.OutwardCommand{SellingRate: 1500, Remark: "walk-in", SaleID: "sale-1", At: at})
	if tx.Type != domain.TransactionOutward || tx.Profit == nil || *tx.Profit != 300 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.Rate != 1500 || tx.SaleID != "sale-1" || !tx.Date.Equal(at) || tx.Discount != 50 {
		t.Fatalf("unexpected transaction fields: %+v", tx)
	}
}

func TestPlanDispatchRejectsProfitOverflow(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	b := batch("A", "0.01", 10, t1)

	_, err := PlanDispatch([]domain.Batch{b}, domain.OutwardCommand{
		Variant:     plainNavyM,
		Quantity:    10,
		SellingRate: money.Amount(math.MaxInt64 / 4),
	})
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error on profit overflow, got %v", err)
	}
}

func TestMergeCapsBatchQuantity(t *testing.T) {
	if got, err := Merge(domain.MaxBatchQuantity-1, 1); err != nil || got != domain.MaxBatchQuantity {
		t.Fatalf("expected merge up to the cap, got %d (%v)", got, err)
	}
	for _, tc := range []struct{ current, received int }{
		{domain.MaxBatchQuantity, 1},
		{math.MaxInt, 1},
		{1, math.MaxInt},
		{5, 0},
	} {
		if _, err := Merge(tc.current, tc.received); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("Merge(%d, %d) expected validation error, got %v", tc.current, tc.received, err)
		}
	}
}

func TestCheckUpdate(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	layers := []domain.Batch{batch("A", "10", 5, t1), batch("B", "12", 5, t1)}

	moved := layers[1]
	moved.InwardRate = money.MustParse("10.01")
	if err := CheckUpdate(layers, moved); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected collision with batch A, got %v", err)
	}

	own := layers[1]
	own.InwardRate = money.MustParse("12.01")
	if err := CheckUpdate(layers, own); err != nil {
		t.Fatalf("expected change inside own layer to pass, got %v", err)
	}

	other := layers[1]
	other.SellingRate = money.MustParse("25")
	other.InwardRate = money.MustParse("10")
	if err := CheckUpdate(layers, other); err != nil {
		t.Fatalf("expected different selling rate to be a separate layer, got %v", err)
	}

	full := layers[0]
	full.Quantity = domain.MaxBatchQuantity + 1
	if err := CheckUpdate(layers, full); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected quantity cap, got %v", err)
	}
}
