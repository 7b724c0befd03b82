package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/iefreport/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("establishment 42: %w", store.ErrNotFound),
			wantCode: "DB001",
		},
		{
			name:     "busy sentinel",
			err:      fmt.Errorf("query: %w", store.ErrBusy),
			wantCode: "DB002",
		},
		{
			name:     "locked database text",
			err:      errors.New("database is locked (5) (SQLITE_BUSY)"),
			wantCode: "DB002",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			wantCode: "DB003",
		},
		{
			name:     "deadline exceeded",
			err:      errors.New("query: context deadline exceeded"),
			wantCode: "DB004",
		},
		{
			name:     "unknown table",
			err:      fmt.Errorf("%w: budgets", ErrUnknownTable),
			wantCode: "TBL001",
		},
		{
			name:     "unknown report",
			err:      fmt.Errorf("%w: annuel", ErrUnknownReport),
			wantCode: "TBL002",
		},
		{
			name:     "invalid filter",
			err:      fmt.Errorf("%w: commune_id must be a number", ErrInvalidFilter),
			wantCode: "TBL003",
		},
		{
			name:     "too many exports",
			err:      ErrTooManyExports,
			wantCode: "EXP001",
		},
		{
			name:     "rate limit is case insensitive",
			err:      errors.New("Rate Limit exceeded"),
			wantCode: "RATE001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() returned an empty message")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(store.ErrNotFound)

	expected := "Enregistrement introuvable (Code: DB001). Vérifiez le lien ou revenez à la liste"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrTooManyExports, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
