package script

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

func TestParseFetchBody_SuccessResultShape(t *testing.T) {
	body := `{"result":"success","data":[{"date":"2026-02-28T10:00:00Z","item":"午餐","payer":"想想","twd":0,"jpy":1200,"note":""}]}`
	records, err := parseFetchBody([]byte(body))
	if err != nil {
		t.Fatalf("parseFetchBody() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Item != "午餐" || rec.Payer != "想想" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.AmountTWD.IsZero() || !rec.AmountJPY.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("amounts = (%s, %s), want (0, 1200)", rec.AmountTWD, rec.AmountJPY)
	}
	totals := core.SumTotals(records)
	if !totals.TWD.IsZero() || !totals.JPY.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("totals = (%s, %s), want (0, 1200)", totals.TWD, totals.JPY)
	}
}

func TestParseFetchBody_StatusShapeAndAltSpellings(t *testing.T) {
	body := `{"status":"success","message":"ok","data":[{"date":"2026/03/01","item":"車票","payer":"錢錢","amountTwd":"NT$350.50","amountJpy":0,"note":"pasmo","rowIndex":5}]}`
	records, err := parseFetchBody([]byte(body))
	if err != nil {
		t.Fatalf("parseFetchBody() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	want, _ := decimal.NewFromString("350.50")
	if !rec.AmountTWD.Equal(want) {
		t.Fatalf("AmountTWD = %s, want 350.50", rec.AmountTWD)
	}
	if rec.RowIndex != 5 {
		t.Fatalf("RowIndex = %d, want 5", rec.RowIndex)
	}
	if rec.Note != "pasmo" {
		t.Fatalf("Note = %q, want pasmo", rec.Note)
	}
}

func TestParseFetchBody_RemoteError(t *testing.T) {
	records, err := parseFetchBody([]byte(`{"error":"sheet locked"}`))
	if records != nil {
		t.Fatalf("got records %v, want nil", records)
	}
	if !errors.Is(err, ledger.ErrRemoteLogic) {
		t.Fatalf("err = %v, want remote-logic classification", err)
	}
	if got := ledger.DisplayMessage(err); got != "sheet locked" {
		t.Fatalf("DisplayMessage() = %q, want the remote's own message", got)
	}
}

func TestParseFetchBody_StatusError(t *testing.T) {
	_, err := parseFetchBody([]byte(`{"status":"error","message":"quota exceeded"}`))
	if !errors.Is(err, ledger.ErrRemoteLogic) {
		t.Fatalf("err = %v, want remote-logic classification", err)
	}
	if got := ledger.DisplayMessage(err); got != "quota exceeded" {
		t.Fatalf("DisplayMessage() = %q", got)
	}
}

func TestParseFetchBody_SignInPage(t *testing.T) {
	pages := map[string]string{
		"doctype":      `<!DOCTYPE html><html><head><title>Sign in</title></head></html>`,
		"accounts url": `<HTML><body><a href="https://accounts.google.com/ServiceLogin">sign in</a></body></HTML>`,
	}
	for name, body := range pages {
		t.Run(name, func(t *testing.T) {
			_, err := parseFetchBody([]byte(body))
			if !errors.Is(err, ledger.ErrPermission) {
				t.Fatalf("err = %v, want permission classification", err)
			}
		})
	}
}

func TestParseFetchBody_NonJSON(t *testing.T) {
	_, err := parseFetchBody([]byte("internal server error"))
	if !errors.Is(err, ledger.ErrRemoteLogic) {
		t.Fatalf("err = %v, want remote-logic classification", err)
	}
}

func TestParseFetchBody_NoSuccessMarker(t *testing.T) {
	_, err := parseFetchBody([]byte(`{"data":[]}`))
	if !errors.Is(err, ledger.ErrRemoteLogic) {
		t.Fatalf("err = %v, want remote-logic classification", err)
	}
}

func TestParseFetchBody_NullData(t *testing.T) {
	records, err := parseFetchBody([]byte(`{"result":"success","data":null}`))
	if err != nil {
		t.Fatalf("parseFetchBody() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", records)
	}
}

func TestParseFetchBody_DataNotAList(t *testing.T) {
	_, err := parseFetchBody([]byte(`{"result":"success","data":{"item":"午餐"}}`))
	if !errors.Is(err, ledger.ErrRemoteLogic) {
		t.Fatalf("err = %v, want remote-logic classification", err)
	}
}

func TestParseFetchBody_HeaderRowsFiltered(t *testing.T) {
	body := `{"result":"success","data":[
		{"date":"日期","item":"項目","payer":"付款人","twd":0,"jpy":0,"note":""},
		{"date":"Date","item":"Item","payer":"Payer","twd":0,"jpy":0,"note":""},
		{"date":"2026-03-02","item":"晚餐","payer":"錢錢","twd":0,"jpy":3000,"note":""}
	]}`
	records, err := parseFetchBody([]byte(body))
	if err != nil {
		t.Fatalf("parseFetchBody() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 after header filtering", len(records))
	}
	if records[0].Item != "晚餐" {
		t.Fatalf("surviving record = %+v", records[0])
	}
}

func TestParseFetchBody_MissingFields(t *testing.T) {
	body := `{"result":"success","data":[{"item":"雜費"}]}`
	records, err := parseFetchBody([]byte(body))
	if err != nil {
		t.Fatalf("parseFetchBody() error = %v", err)
	}
	rec := records[0]
	if rec.Date != "" || rec.Payer != "" || rec.RowIndex != 0 {
		t.Fatalf("missing fields should stay zero, got %+v", rec)
	}
	if !rec.AmountTWD.IsZero() || !rec.AmountJPY.IsZero() {
		t.Fatalf("amounts = (%s, %s), want zeros", rec.AmountTWD, rec.AmountJPY)
	}
}
