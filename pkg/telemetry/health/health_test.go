package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"civility-hq/kernel/pkg/evidence/storage"
	"civility-hq/kernel/pkg/policy"
)

func TestChecker_Liveness(t *testing.T) {
	c := New(0)
	if c.checkTimeout != 5*time.Second {
		t.Errorf("checkTimeout = %v, want 5s default", c.checkTimeout)
	}
	if got := c.CheckLiveness(context.Background()); got.Status != StatusOK {
		t.Errorf("CheckLiveness() = %+v", got)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return errors.New("down") },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			got := c.CheckReadiness(context.Background())
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("Checks = %v", got.Checks)
			}
			for _, name := range tt.wantFailed {
				if got.Checks[name].Status != StatusUnhealthy || got.Checks[name].Message != "down" {
					t.Errorf("Checks[%s] = %+v", name, got.Checks[name])
				}
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	got := c.CheckReadiness(context.Background())
	if got.Status != StatusDegraded || got.Checks["slow"].Message != "health check timeout" {
		t.Errorf("CheckReadiness() = %+v", got)
	}
}

func TestChecker_RegisterUnregister(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("policy", func(context.Context) error { return nil })
	c.RegisterCheck("evidence", func(context.Context) error { return nil })

	if got := c.ListChecks(); !reflect.DeepEqual(got, []string{"evidence", "policy"}) {
		t.Errorf("ListChecks() = %v", got)
	}
	c.UnregisterCheck("policy")
	if got := c.ListChecks(); !reflect.DeepEqual(got, []string{"evidence"}) {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestPolicyCheck(t *testing.T) {
	var current *policy.Policy
	check := PolicyCheck(func() *policy.Policy { return current })

	if err := check(context.Background()); !errors.Is(err, ErrNoPolicy) {
		t.Errorf("check() = %v, want ErrNoPolicy", err)
	}
	current = &policy.Policy{Version: "1"}
	if err := check(context.Background()); err != nil {
		t.Errorf("check() = %v", err)
	}
}

func TestStorageCheck(t *testing.T) {
	s := storage.NewMemoryStorage()
	check := StorageCheck(s)
	if err := check(context.Background()); err != nil {
		t.Errorf("check() = %v", err)
	}
	_ = s.Close()
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	ready := false
	c.RegisterCheck("policy", func(context.Context) error {
		if !ready {
			return ErrNoPolicy
		}
		return nil
	})

	mux := http.NewServeMux()
	Register(mux, c, "/health", "/ready", VersionInfo{Version: "1.2.3"})

	tests := []struct {
		name     string
		method   string
		path     string
		ready    bool
		wantCode int
	}{
		{"liveness", http.MethodGet, "/health", false, http.StatusOK},
		{"not ready", http.MethodGet, "/ready", false, http.StatusServiceUnavailable},
		{"ready", http.MethodGet, "/ready", true, http.StatusOK},
		{"head ready", http.MethodHead, "/ready", true, http.StatusOK},
		{"version", http.MethodGet, "/version", false, http.StatusOK},
		{"post rejected", http.MethodPost, "/health", false, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready = tt.ready
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Errorf("HEAD body = %q", rec.Body.String())
			}
		})
	}
}

func TestReadinessHandler_Body(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("policy", func(context.Context) error { return ErrNoPolicy })

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if status.Status != StatusDegraded || status.Checks["policy"].Message != "no policy loaded" {
		t.Errorf("status = %+v", status)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}
