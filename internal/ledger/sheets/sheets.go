// Package sheets is the direct Google Sheets API ledger backend. It bypasses
// the Apps Script deployment and reads/writes the expense sheet itself using
// service-account credentials, which makes it the preferred backend when the
// spreadsheet can be shared with a robot account.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tabi/internal/core"
	"tabi/internal/ledger"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Sheet layout: A date, B item, C payer, D TWD, E JPY, F note. Row 1 is the
// header.
const readRange = "A:F"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

var _ ledger.Client = (*Client)(nil)

// NewFromEnv builds a client from GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME
// (default "記帳") and service-account credentials in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "記帳"
	}

	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return credentialsJSON, nil
}

func (c *Client) FetchAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	rng := fmt.Sprintf("%s!%s", c.sheetName, readRange)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err, "read "+rng)
	}
	return mapRows(resp.Values), nil
}

// mapRows turns raw sheet rows into records. The header row and fully empty
// rows are dropped; row indexes are 1-based sheet positions so a later edit
// or delete can address the row.
func mapRows(values [][]any) []core.ExpenseRecord {
	records := make([]core.ExpenseRecord, 0, len(values))
	for i, row := range values {
		rec := core.ExpenseRecord{RowIndex: i + 1}
		if len(row) > 0 {
			rec.Date = cellText(row[0])
		}
		if len(row) > 1 {
			rec.Item = cellText(row[1])
		}
		if len(row) > 2 {
			rec.Payer = cellText(row[2])
		}
		if len(row) > 3 {
			if amt, ok := core.ParseAmount(row[3]); ok {
				rec.AmountTWD = amt
			}
		}
		if len(row) > 4 {
			if amt, ok := core.ParseAmount(row[4]); ok {
				rec.AmountJPY = amt
			}
		}
		if len(row) > 5 {
			rec.Note = cellText(row[5])
		}
		if i == 0 && looksLikeHeader(rec) {
			continue
		}
		if rec.Date == "" && rec.Item == "" && rec.AmountTWD.IsZero() && rec.AmountJPY.IsZero() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func looksLikeHeader(rec core.ExpenseRecord) bool {
	d := strings.ToLower(rec.Date)
	it := strings.ToLower(rec.Item)
	return d == "日期" || d == "date" || it == "項目" || it == "item"
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Client) Submit(ctx context.Context, in core.NewExpenseInput) error {
	if err := in.Validate(); err != nil {
		return ledger.ValidationErr(err.Error(), err)
	}

	var twd, jpy float64
	switch in.Currency {
	case core.CurrencyTWD:
		twd = in.Amount.InexactFloat64()
	case core.CurrencyJPY:
		jpy = in.Amount.InexactFloat64()
	}

	rng := fmt.Sprintf("%s!%s", c.sheetName, readRange)
	vr := &gsheet.ValueRange{Values: [][]any{{
		c.now().Format("2006-01-02 15:04"), in.Item, string(in.Payer), twd, jpy, in.Note,
	}}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classifyAPIError(err, "append to "+rng)
	}
	return nil
}

func classifyAPIError(err error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return ledger.PermissionErr("spreadsheet is not shared with the service account", err)
		}
		return ledger.RemoteLogicErr(fmt.Sprintf("%s: sheets API returned %d", op, apiErr.Code), err)
	}
	return ledger.TransportErr("cannot reach sheets API", err)
}
