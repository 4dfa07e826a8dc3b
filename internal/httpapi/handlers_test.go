package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/report"
	"hosiery/backend/internal/service"
	"hosiery/backend/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI builds the full handler chain over an in-memory store.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(memory.New(), service.Options{})
	return New(svc, Options{AllowedOrigins: []string{"http://shop.test"}}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body=%s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, newTestAPI(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["ok"] != true || body["discount_policy"] != "full" {
		t.Fatalf("unexpected body %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected security and request id headers")
	}
}

func TestHealthReportsUnready(t *testing.T) {
	svc := service.New(memory.New(), service.Options{})
	h := New(svc, Options{Ready: func(context.Context) error { return errors.New("db down") }}).Handler()
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestInwardOutwardFlow(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/inventory/inward", `{"type":"Plain","color":"White","size":"24","quantity":10,"inward_rate":100,"selling_rate":"130.50"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var inward domain.ReceiveStockResponse
	decode(t, rec, &inward)
	if len(inward.Batches) != 1 || inward.Batches[0].Barcode != "P08S01" || inward.TransactionID == "" {
		t.Fatalf("unexpected inward response %+v", inward)
	}

	rec = do(t, h, http.MethodPost, "/api/inventory/outward", `{"type":"Plain","color":"White","size":"24","quantity":3,"selling_rate":150,"remark":"walk-in"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var outward domain.DispatchStockResponse
	decode(t, rec, &outward)
	if len(outward.Transactions) != 1 || outward.Batches[0].Quantity != 7 {
		t.Fatalf("unexpected outward response %+v", outward)
	}
	if outward.Transactions[0].Profit == nil || outward.Transactions[0].Profit.String() != "150.00" {
		t.Fatalf("expected profit 150.00, got %+v", outward.Transactions[0].Profit)
	}

	rec = do(t, h, http.MethodGet, "/api/metrics", "")
	var metrics map[string]float64
	decode(t, rec, &metrics)
	if metrics["profit_earned"] != 150 || metrics["profit_potential"] != 213.5 {
		t.Fatalf("unexpected metrics %v", metrics)
	}

	rec = do(t, h, http.MethodGet, "/api/transactions?type=outward", "")
	var ledger domain.TransactionListResponse
	decode(t, rec, &ledger)
	if len(ledger.Transactions) != 1 || ledger.Transactions[0].Item.Color != "White" {
		t.Fatalf("unexpected ledger %+v", ledger)
	}
}

func TestOutwardInsufficientReturnsConflict(t *testing.T) {
	h := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/inventory/inward", `{"type":"Dora","color":"Red+White","size":"26","quantity":2,"inward_rate":100,"selling_rate":120}`)

	rec := do(t, h, http.MethodPost, "/api/inventory/outward", `{"type":"Dora","color":"Red+White","size":"26","quantity":5,"selling_rate":120}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["available"] != float64(2) {
		t.Fatalf("expected available 2, got %v", body)
	}
}

func TestErrorStatuses(t *testing.T) {
	h := newTestAPI(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing field", http.MethodPost, "/api/inventory/inward", `{"type":"Plain","color":"White","size":"24","quantity":0,"inward_rate":10}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/inventory/inward", `{"type":"Plain","colour":"White"}`, http.StatusBadRequest},
		{"rate overflow", http.MethodPost, "/api/inventory/inward", `{"type":"Plain","color":"White","size":"24","quantity":1,"inward_rate":200000000000000000}`, http.StatusBadRequest},
		{"quantity above cap", http.MethodPost, "/api/inventory/inward", `{"type":"Plain","color":"White","size":"24","quantity":9223372036854775807,"inward_rate":10}`, http.StatusBadRequest},
		{"bad offset", http.MethodGet, "/api/transactions?offset=-3", "", http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/inventory/outward", `{"type":`, http.StatusBadRequest},
		{"no stock", http.MethodPost, "/api/inventory/outward", `{"type":"Plain","color":"Red","size":"24","quantity":1,"selling_rate":10}`, http.StatusNotFound},
		{"unknown batch", http.MethodPut, "/api/inventory/bat-missing", `{"quantity":1,"inward_rate":10,"selling_rate":12}`, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/transactions?limit=many", "", http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/transactions?from=yesterday", "", http.StatusBadRequest},
		{"bad type", http.MethodGet, "/api/transactions?type=refund", "", http.StatusBadRequest},
		{"unknown barcode", http.MethodGet, "/api/inventory/barcode/ZZZ", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, h, tc.method, tc.path, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}
}

func TestBodyLimit(t *testing.T) {
	h := newTestAPI(t)
	big := `{"type":"Plain","color":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(t, h, http.MethodPost, "/api/inventory/inward", big)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestUpdateBatchAndBarcodeLookup(t *testing.T) {
	h := newTestAPI(t)
	rec := do(t, h, http.MethodPost, "/api/inventory/inward", `{"type":"Zipper","color":"Black","size":"38","quantity":4,"inward_rate":200,"selling_rate":240}`)
	var inward domain.ReceiveStockResponse
	decode(t, rec, &inward)

	rec = do(t, h, http.MethodPut, "/api/inventory/"+inward.BatchID, `{"quantity":6,"inward_rate":190,"selling_rate":240}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/inventory/barcode/z06s06", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var lookup domain.BarcodeLookupResponse
	decode(t, rec, &lookup)
	if lookup.Variant.Type != "Zipper" || len(lookup.Batches) != 1 || lookup.Batches[0].Quantity != 6 {
		t.Fatalf("unexpected lookup %+v", lookup)
	}
}

func TestSuggestRate(t *testing.T) {
	rec := do(t, newTestAPI(t), http.MethodPost, "/api/inventory/suggest-rate", `{"type":"Plain","color":"Black","size":"24","inward_rate":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["selling_rate"] != float64(117) || resp["source"] != "predicted" {
		t.Fatalf("unexpected suggestion %v", resp)
	}
}

func TestExportTransactions(t *testing.T) {
	h := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/inventory/inward", `{"type":"Plain","color":"White","size":"24","quantity":1,"inward_rate":10,"selling_rate":12}`)

	rec := do(t, h, http.MethodGet, "/api/transactions/export?from=2000-01-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != report.ContentTypeXLSX {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected xlsx attachment")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/inventory/outward", nil)
	req.Header.Set("Origin", "http://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://shop.test" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestDefaultOriginsAllowFrontEnd(t *testing.T) {
	h := New(service.New(memory.New(), service.Options{}), Options{}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/inventory/inward", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5500")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "http://127.0.0.1:5500" {
		t.Fatalf("expected local front end to be allowed, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
