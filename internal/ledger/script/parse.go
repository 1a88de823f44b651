package script

import (
	"bytes"
	"encoding/json"
	"strings"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

// Markers that betray the Google sign-in page the script host serves when a
// deployment is not published for anonymous access. Their presence turns a
// parse failure into a permission failure, which needs a redeploy, not a
// retry.
var signInMarkers = []string{
	"accounts.google.com",
	"servicelogin",
	"<!doctype html",
	"<html",
}

// Header-row sentinel values. The script sometimes echoes the sheet's own
// header row as a data row; any row whose date or item cell matches one of
// these is dropped during normalization.
var (
	dateSentinels = map[string]struct{}{"日期": {}, "date": {}, "時間": {}, "timestamp": {}}
	itemSentinels = map[string]struct{}{"項目": {}, "item": {}}
)

// envelope covers both observed revisions of the feed
// ({result:"success",data:[...]} and {status:"...",message,data:[...]}) plus
// the bare {error:"..."} failure shape.
type envelope struct {
	Result  string          `json:"result"`
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// parseFetchBody normalizes a raw response body into records, classifying
// every failure mode. The body is always read as text first; the remote's
// content-type header is not trusted.
func parseFetchBody(raw []byte) ([]core.ExpenseRecord, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		if looksLikeSignInPage(raw) {
			return nil, ledger.PermissionErr("ledger endpoint returned a sign-in page instead of data", err)
		}
		return nil, ledger.RemoteLogicErr("ledger response is not valid JSON", err)
	}

	if env.Error != "" {
		return nil, ledger.RemoteLogicErr(env.Error, nil)
	}
	if env.Status == "error" {
		msg := env.Message
		if msg == "" {
			msg = "remote reported an error"
		}
		return nil, ledger.RemoteLogicErr(msg, nil)
	}
	if env.Result != "success" && env.Status != "success" {
		return nil, ledger.RemoteLogicErr("ledger response has no success marker", nil)
	}

	// Absent data with a success marker means an empty sheet.
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return []core.ExpenseRecord{}, nil
	}

	var rows []map[string]any
	rowDec := json.NewDecoder(bytes.NewReader(env.Data))
	rowDec.UseNumber()
	if err := rowDec.Decode(&rows); err != nil {
		return nil, ledger.RemoteLogicErr("ledger data is not a record list", err)
	}

	records := make([]core.ExpenseRecord, 0, len(rows))
	for _, row := range rows {
		rec := mapRow(row)
		if isHeaderRow(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// mapRow tolerates both field spellings the script revisions have used:
// twd/jpy and amountTwd/amountJpy.
func mapRow(row map[string]any) core.ExpenseRecord {
	rec := core.ExpenseRecord{
		Date:  cellString(row, "date"),
		Item:  cellString(row, "item"),
		Payer: cellString(row, "payer"),
		Note:  cellString(row, "note"),
	}
	if amt, ok := core.ParseAmount(pick(row, "twd", "amountTwd")); ok {
		rec.AmountTWD = amt
	}
	if amt, ok := core.ParseAmount(pick(row, "jpy", "amountJpy")); ok {
		rec.AmountJPY = amt
	}
	// rowIndex is only present in the newer script revision; keep it when it
	// is a positive integer, otherwise leave it zero.
	if idx, ok := core.ParseAmount(row["rowIndex"]); ok && idx.IsPositive() {
		rec.RowIndex = int(idx.IntPart())
	}
	return rec
}

func pick(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func cellString(row map[string]any, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return ""
}

func isHeaderRow(rec core.ExpenseRecord) bool {
	if _, ok := dateSentinels[strings.ToLower(rec.Date)]; ok {
		return true
	}
	if _, ok := itemSentinels[strings.ToLower(rec.Item)]; ok {
		return true
	}
	return false
}

func looksLikeSignInPage(raw []byte) bool {
	body := strings.ToLower(string(raw))
	for _, marker := range signInMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
