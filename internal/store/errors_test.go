package store

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{NewValidationError("quantity", "must be at least 1"), ErrValidation},
		{NewNotFoundError("batch", "bat-1"), ErrNotFound},
		{&InsufficientStockError{Requested: 9, Available: 4}, ErrInsufficientStock},
		{NewStorageError("dispatch", context.DeadlineExceeded), ErrStorage},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Fatalf("expected %v to match %v", tc.err, tc.sentinel)
		}
	}
}

func TestInsufficientStockCarriesAvailable(t *testing.T) {
	var err error = &InsufficientStockError{Requested: 9, Available: 4}
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected errors.As to find InsufficientStockError")
	}
	if insufficient.Available != 4 {
		t.Fatalf("expected available 4, got %d", insufficient.Available)
	}
}

func TestAsStorageKeepsTaxonomyErrors(t *testing.T) {
	notFound := NewNotFoundError("batch", "x")
	if got := AsStorage("update", notFound); got != notFound {
		t.Fatalf("expected not found error to pass through, got %v", got)
	}

	wrapped := AsStorage("update", context.Canceled)
	if !errors.Is(wrapped, ErrStorage) || !errors.Is(wrapped, context.Canceled) {
		t.Fatalf("expected storage error wrapping context.Canceled, got %v", wrapped)
	}
	if AsStorage("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestPage(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}
	cases := []struct {
		offset, limit int
		want          []int
	}{
		{0, 0, []int{1, 2, 3, 4, 5}},
		{0, 2, []int{1, 2}},
		{2, 0, []int{3, 4, 5}},
		{3, 5, []int{4, 5}},
		{9, 1, []int{}},
	}
	for _, tc := range cases {
		got := Page(rows, tc.offset, tc.limit)
		if !slices.Equal(got, tc.want) {
			t.Fatalf("Page(offset=%d, limit=%d) expected %v, got %v", tc.offset, tc.limit, tc.want, got)
		}
	}
}
