package evidence

import (
	"errors"
	"strings"
	"testing"
)

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"storage", NewStorageError("sqlite", "store", cause), "storage error [backend=sqlite, operation=store]: disk full"},
		{"query", NewQueryError(&Query{}, cause), "query error: disk full"},
		{"recorder", NewRecorderError("r-1", cause), "recorder error [record_id=r-1]: disk full"},
		{"recorder without id", NewRecorderError("", cause), "recorder error: disk full"},
		{"retention", NewRetentionError("720h0m0s", cause), "retention error [max_age=720h0m0s]: disk full"},
		{"export", NewExportError("csv", 3, cause), "export error [format=csv, record_count=3]: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("errors.Is(err, cause) = false, want true")
			}
		})
	}
}

func TestStorageError_WrapsNotFound(t *testing.T) {
	err := NewStorageError("memory", "get", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false, want true")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Error() = %q", err.Error())
	}
}
