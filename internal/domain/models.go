package domain

import (
	"strings"
	"time"

	"hosiery/backend/internal/money"
)

type TransactionType string

const (
	// MaxRequestQuantity bounds a single receipt or sale.
	MaxRequestQuantity = 1_000_000
	// MaxBatchQuantity bounds the stock held in one cost layer, so that
	// quantity times any rate stays within int64 minor units.
	MaxBatchQuantity = 10_000_000
)

const (
	TransactionInward  TransactionType = "inward"
	TransactionOutward TransactionType = "outward"
)

// DiscountPolicy decides how a sale discount is written when the sale spans
// several batches.
type DiscountPolicy string

const (
	// DiscountFull writes the whole discount on every batch row of the sale.
	DiscountFull DiscountPolicy = "full"
	// DiscountProrate splits the discount by dispatched quantity so the rows
	// of one sale sum to the discount given.
	DiscountProrate DiscountPolicy = "prorate"
)

func (p DiscountPolicy) Valid() bool {
	return p == DiscountFull || p == DiscountProrate
}

type Variant struct {
	Type  string `json:"type"`
	Color string `json:"color"`
	Size  string `json:"size"`
}

func (v Variant) Key() string {
	return strings.Join([]string{v.Type, v.Color, v.Size}, "|")
}

// Batch is one cost layer of a variant: same type/color/size bought and
// priced at one inward/selling rate pair.
type Batch struct {
	ID          string       `json:"id" db:"id"`
	Type        string       `json:"type" db:"type"`
	Color       string       `json:"color" db:"color"`
	Size        string       `json:"size" db:"size"`
	Quantity    int          `json:"quantity" db:"quantity"`
	InwardRate  money.Amount `json:"inward_rate" db:"inward_rate"`
	SellingRate money.Amount `json:"selling_rate" db:"selling_rate"`
	Barcode     string       `json:"barcode" db:"barcode"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	LastUpdated time.Time    `json:"last_updated" db:"last_updated"`
}

func (b Batch) Variant() Variant {
	return Variant{Type: b.Type, Color: b.Color, Size: b.Size}
}

func (b Batch) Available() bool {
	return b.Quantity > 0
}

// Transaction is an append-only ledger row. Outward sales spanning several
// batches produce one row per batch, grouped by SaleID.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	InventoryID string          `json:"inventory_id" db:"inventory_id"`
	Type        TransactionType `json:"type" db:"type"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Rate        money.Amount    `json:"rate" db:"rate"`
	Discount    money.Amount    `json:"discount" db:"discount"`
	Remark      string          `json:"remark" db:"remark"`
	Barcode     string          `json:"barcode" db:"barcode"`
	Profit      *money.Amount   `json:"profit" db:"profit"`
	SaleID      string          `json:"sale_id,omitempty" db:"sale_id"`
	Date        time.Time       `json:"date" db:"date"`
}

type TransactionItem struct {
	Type        string       `json:"type"`
	Color       string       `json:"color"`
	Size        string       `json:"size"`
	InwardRate  money.Amount `json:"inward_rate"`
	SellingRate money.Amount `json:"selling_rate"`
}

// TransactionView is a ledger row joined with the attributes of its batch.
type TransactionView struct {
	Transaction
	Total    money.Amount    `json:"total"`
	NetTotal money.Amount    `json:"net_total"`
	Item     TransactionItem `json:"item"`
}

func NewTransactionView(tx Transaction, batch *Batch) TransactionView {
	total := tx.Rate.Mul(tx.Quantity)
	view := TransactionView{
		Transaction: tx,
		Total:       total,
		NetTotal:    total - tx.Discount,
	}
	if batch != nil {
		view.Item = TransactionItem{
			Type:        batch.Type,
			Color:       batch.Color,
			Size:        batch.Size,
			InwardRate:  batch.InwardRate,
			SellingRate: batch.SellingRate,
		}
	}
	return view
}

type TransactionFilter struct {
	Type        TransactionType `json:"type,omitempty"`
	InventoryID string          `json:"inventory_id,omitempty"`
	From        *time.Time      `json:"from,omitempty"`
	To          *time.Time      `json:"to,omitempty"`
	// Limit caps the rows returned; zero means no cap.
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// InwardCommand is a validated receipt handed to the store.
type InwardCommand struct {
	Variant
	Quantity    int
	InwardRate  money.Amount
	SellingRate money.Amount
	At          time.Time
}

type InwardResult struct {
	Batch       Batch
	Transaction Transaction
	Merged      bool
}

// OutwardCommand is a validated sale demand handed to the store.
type OutwardCommand struct {
	Variant
	Quantity    int
	SellingRate money.Amount
	Discount    money.Amount
	Remark      string
	Policy      DiscountPolicy
	SaleID      string
	At          time.Time
}

type OutwardResult struct {
	SaleID       string
	Transactions []Transaction
}

type BatchUpdate struct {
	ID          string
	Quantity    int
	InwardRate  money.Amount
	SellingRate money.Amount
	At          time.Time
}

// StockTotals are the raw sums behind the profit metrics. Missing sums are
// zero.
type StockTotals struct {
	StockSellValue  money.Amount
	StockCostValue  money.Amount
	OutwardProfit   money.Amount
	OutwardDiscount money.Amount
}

type Metrics struct {
	ProfitPotential money.Amount `json:"profit_potential"`
	ProfitEarned    money.Amount `json:"profit_earned"`
}

type ReceiveStockRequest struct {
	Type        string        `json:"type" validate:"required,max=100"`
	Color       string        `json:"color" validate:"required,max=100"`
	Size        string        `json:"size" validate:"required,max=50"`
	Quantity    int           `json:"quantity" validate:"required,gte=1,max=1000000"`
	InwardRate  money.Amount  `json:"inward_rate" validate:"required,gt=0,max=100000000000"`
	SellingRate *money.Amount `json:"selling_rate,omitempty" validate:"omitempty,gte=0,max=100000000000"`
}

type ReceiveStockResponse struct {
	Batches       []Batch `json:"batches"`
	TransactionID string  `json:"transaction_id"`
	BatchID       string  `json:"batch_id"`
	Merged        bool    `json:"merged"`
}

type DispatchStockRequest struct {
	Type        string       `json:"type" validate:"required,max=100"`
	Color       string       `json:"color" validate:"required,max=100"`
	Size        string       `json:"size" validate:"required,max=50"`
	Quantity    int          `json:"quantity" validate:"required,gte=1,max=1000000"`
	SellingRate money.Amount `json:"selling_rate" validate:"required,gt=0,max=100000000000"`
	Discount    money.Amount `json:"discount" validate:"gte=0,max=100000000000"`
	Remark      string       `json:"remark" validate:"max=500"`
}

type DispatchStockResponse struct {
	Batches      []Batch       `json:"batches"`
	SaleID       string        `json:"sale_id"`
	Transactions []Transaction `json:"transactions"`
}

type UpdateBatchRequest struct {
	Quantity    *int         `json:"quantity" validate:"required,gte=0,max=10000000"`
	InwardRate  money.Amount `json:"inward_rate" validate:"required,gt=0,max=100000000000"`
	SellingRate money.Amount `json:"selling_rate" validate:"required,gt=0,max=100000000000"`
}

type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

type TransactionListResponse struct {
	Transactions []TransactionView `json:"transactions"`
}

type BarcodeLookupResponse struct {
	Barcode string  `json:"barcode"`
	Variant Variant `json:"variant"`
	Batches []Batch `json:"batches"`
}

type SuggestRateRequest struct {
	Type       string       `json:"type" validate:"required,max=100"`
	Color      string       `json:"color" validate:"required,max=100"`
	Size       string       `json:"size" validate:"required,max=50"`
	InwardRate money.Amount `json:"inward_rate" validate:"required,gt=0,max=100000000000"`
}

const (
	RateSourceExisting  = "existing"
	RateSourcePredicted = "predicted"
)

type SuggestRateResponse struct {
	SellingRate   money.Amount `json:"selling_rate"`
	Source        string       `json:"source"`
	UnitProfit    money.Amount `json:"unit_profit"`
	MarginPercent float64      `json:"margin_percent"`
}
