package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/report"
	"hosiery/backend/internal/store"
)

var errNotFoundRoute = errors.New("route not found")

func (a *API) handleHealth(c *gin.Context) {
	if a.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.opts.Ready(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "discount_policy": a.service.Policy()})
}

func (a *API) handleListBatches(c *gin.Context) {
	batches, err := a.service.ListAvailableBatches(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.BatchListResponse{Batches: batches})
}

func (a *API) handleInward(c *gin.Context) {
	var req domain.ReceiveStockRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ReceiveStock(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a *API) handleOutward(c *gin.Context) {
	var req domain.DispatchStockRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.DispatchStock(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a *API) handleUpdateBatch(c *gin.Context) {
	var req domain.UpdateBatchRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	batch, err := a.service.UpdateBatch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "batch": batch})
}

func (a *API) handleBarcodeLookup(c *gin.Context) {
	resp, err := a.service.LookupBarcode(c.Request.Context(), c.Param("code"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSuggestRate(c *gin.Context) {
	var req domain.SuggestRateRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.SuggestSellingRate(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleListTransactions(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	views, err := a.service.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.TransactionListResponse{Transactions: views})
}

func (a *API) handleExportTransactions(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		a.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := a.service.ExportLedger(c.Request.Context(), filter, &buf); err != nil {
		a.fail(c, err)
		return
	}
	filename := fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}

func (a *API) handleMetrics(c *gin.Context) {
	metrics, err := a.service.GetMetrics(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// parseFilter reads ledger filters from the query string. Dates accept
// RFC 3339 or YYYY-MM-DD; a date-only "to" covers the whole day.
func parseFilter(c *gin.Context) (domain.TransactionFilter, error) {
	filter := domain.TransactionFilter{
		Type:        domain.TransactionType(strings.ToLower(strings.TrimSpace(c.Query("type")))),
		InventoryID: strings.TrimSpace(c.Query("inventory_id")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, store.NewValidationError("limit", "must be a number")
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, store.NewValidationError("offset", "must be a number")
		}
		filter.Offset = offset
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return filter, store.NewValidationError("from", "must be RFC 3339 or YYYY-MM-DD")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return filter, store.NewValidationError("to", "must be RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t, true, err
}

func decodeJSON(c *gin.Context, dest any) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// fail maps a service error onto a status code. Storage failures are
// reported without detail.
func (a *API) fail(c *gin.Context, err error) {
	var insufficient *store.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.Is(err, store.ErrValidation):
		writeError(c, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, err)
	default:
		writeError(c, http.StatusInternalServerError, err)
	}
}

func writeError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg})
}
