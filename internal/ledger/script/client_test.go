package script

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestClient_FetchAll_CacheBuster(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("t")
		io.WriteString(w, `{"result":"success","data":[]}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithClock(fixedClock(1772366400000)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	records, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
	if gotQuery != "1772366400000" {
		t.Fatalf("cache-buster t = %q, want 1772366400000", gotQuery)
	}
}

func TestClient_FetchAll_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.FetchAll(context.Background())
	if !errors.Is(err, ledger.ErrTransport) {
		t.Fatalf("err = %v, want transport classification", err)
	}
}

func TestClient_Submit_Payload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	in := core.NewExpenseInput{
		Item:     "晚餐",
		Payer:    core.PayerChien,
		Amount:   decimal.NewFromInt(3000),
		Currency: core.CurrencyJPY,
	}
	if err := c.Submit(context.Background(), in); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gotContentType != "text/plain;charset=utf-8" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("submit body is not JSON: %v", err)
	}
	if payload["item"] != "晚餐" || payload["payer"] != "錢錢" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["amountTwd"] != float64(0) || payload["amountJpy"] != float64(3000) {
		t.Fatalf("amounts = (%v, %v), want (0, 3000)", payload["amountTwd"], payload["amountJpy"])
	}
	if payload["note"] != "" {
		t.Fatalf("note = %v, want empty", payload["note"])
	}
}

func TestClient_Submit_IgnoresResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>post-write redirect junk</html>")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	in := core.NewExpenseInput{
		Item:     "票券",
		Payer:    core.PayerShiang,
		Amount:   decimal.NewFromInt(500),
		Currency: core.CurrencyTWD,
	}
	if err := c.Submit(context.Background(), in); err != nil {
		t.Fatalf("Submit() should treat any response as tentative success, got %v", err)
	}
}

func TestClient_Submit_ValidationShortCircuits(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	in := core.NewExpenseInput{
		Item:     "",
		Payer:    core.PayerShiang,
		Amount:   decimal.NewFromInt(100),
		Currency: core.CurrencyTWD,
	}
	err = c.Submit(context.Background(), in)
	if !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("err = %v, want validation classification", err)
	}
	if hits != 0 {
		t.Fatalf("server was hit %d times, want 0", hits)
	}
}

func TestNew_RejectsEmptyEndpoint(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("New(blank) should fail")
	}
}
