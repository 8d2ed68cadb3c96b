package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestFetcher(attempts int) *Fetcher {
	return NewFetcher(WithAttempts(attempts, time.Millisecond))
}

func TestFetcher_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp, err := newTestFetcher(3).Fetch(context.Background(), Resource{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", resp.Attempts)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
}

func TestFetcher_ExhaustedReturnsFinal429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	resp, err := newTestFetcher(3).Fetch(context.Background(), Resource{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetcher_OtherStatusIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", http.StatusOK},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			resp, err := newTestFetcher(3).Fetch(context.Background(), Resource{URL: server.URL})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("calls = %d, want 1", got)
			}
		})
	}
}

func TestFetcher_ResourceAttemptsOverride(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	resp, err := newTestFetcher(3).Fetch(context.Background(), Resource{URL: server.URL, MaxAttempts: 1})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetcher_TransportErrorNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), Resource{URL: url})
	if err == nil {
		t.Fatal("Fetch() expected error")
	}

	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if tErr.Op != "do request" {
		t.Errorf("Op = %q, want %q", tErr.Op, "do request")
	}
	if StatusCode(err) != 0 {
		t.Errorf("StatusCode(err) = %d, want 0", StatusCode(err))
	}
}

func TestFetcher_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-CG-API-KEY"); got != "secret" {
			t.Errorf("X-CG-API-KEY = %q, want %q", got, "secret")
		}
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("X-CG-API-KEY", "secret")
	if _, err := newTestFetcher(1).Fetch(context.Background(), Resource{URL: server.URL, Header: header}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestFetcher_ContextCancelledDuringDelay(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := NewFetcher(WithAttempts(3, time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, Resource{URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Fetch did not return promptly after cancellation")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetcher_Limiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	f := NewFetcher(WithLimiter(rate.NewLimiter(rate.Every(40*time.Millisecond), 1)))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), Resource{URL: server.URL}); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("3 paced requests took %v, want >= 70ms", elapsed)
	}
}

func TestRetry(t *testing.T) {
	errBusy := errors.New("busy")
	errFatal := errors.New("fatal")
	retryable := func(err error) bool { return errors.Is(err, errBusy) }

	t.Run("succeeds after retryable failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, retryable, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		if err != nil {
			t.Errorf("Retry() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("stops on non-retryable", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, retryable, func(ctx context.Context) error {
			calls++
			return errFatal
		})
		if !errors.Is(err, errFatal) {
			t.Errorf("Retry() error = %v, want %v", err, errFatal)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, time.Millisecond, retryable, func(ctx context.Context) error {
			calls++
			return errBusy
		})
		if !errors.Is(err, errBusy) {
			t.Errorf("Retry() error = %v, want %v", err, errBusy)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})
}
