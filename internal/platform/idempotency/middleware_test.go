package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/helpora/api/internal/platform/requestctx"
)

var fixedTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(fixedClock))

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	handler := middleware(next)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/cart/checkout", bytes.NewBufferString(`{"payment_ref":"pm_1"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}

	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls)
	}
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(fixedClock))

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"booking_id":"bkg_1"}`))
	})

	handler := middleware(next)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/checkout", bytes.NewBufferString(`{"payment_ref":"pm_1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "chk-abc-123")
		req = req.WithContext(requestctx.WithCustomerID(req.Context(), "cus_1"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	if first.Header().Get(replayHeaderName) != "" {
		t.Fatal("first response should not be marked as a replay")
	}

	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay marker header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
}

func TestMiddlewareRejectsReusedKeyForDifferentRequest(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(fixedClock))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	handler := middleware(next)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/checkout", bytes.NewBufferString(body))
		req.Header.Set("Idempotency-Key", "chk-abc-123")
		req = req.WithContext(requestctx.WithCustomerID(req.Context(), "cus_1"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(`{"payment_ref":"pm_1"}`); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr := send(`{"payment_ref":"pm_2"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != "idempotency_key_conflict" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestMiddlewareScopesKeysByCustomer(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(fixedClock))

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	handler := middleware(next)

	send := func(customerID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/checkout", bytes.NewBufferString(`{"payment_ref":"pm_1"}`))
		req.Header.Set("Idempotency-Key", "chk-shared")
		req = req.WithContext(requestctx.WithCustomerID(req.Context(), customerID))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := send("cus_1"); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr := send("cus_2"); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for second customer, got %d", rr.Code)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run for each customer, ran %d times", calls)
	}
}

func TestMiddlewareIgnoresUnguardedMethods(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(fixedClock))

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Idempotency-Key", "chk-get")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls)
	}
}

func TestMemoryStoreExpiresRecords(t *testing.T) {
	store := NewMemoryStore()

	reservation, err := store.Reserve(context.Background(), "key|cus_1", "fp-1", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", reservation.State)
	}

	later := fixedTime.Add(2 * time.Hour)
	reservation, err = store.Reserve(context.Background(), "key|cus_1", "fp-2", later, time.Hour)
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if reservation.State != ReservationStateNew {
		t.Fatalf("expected expired record to be reclaimed, got %v", reservation.State)
	}

	removed, err := store.CleanupExpired(context.Background(), later.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed record, got %d", removed)
	}
}
