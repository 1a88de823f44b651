// Package script talks to the Google Apps Script web-app deployment that
// fronts the trip's expense spreadsheet. The contract is loose: reads return
// a JSON envelope in one of two observed shapes, writes return nothing
// useful, and a misconfigured deployment answers with an HTML sign-in page.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tabi/internal/core"
	"tabi/internal/ledger"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

type Client struct {
	endpoint string
	httpc    *http.Client
	now      func() time.Time
}

var _ ledger.Client = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithClock overrides the cache-buster clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("missing script endpoint URL")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid script endpoint URL: %w", err)
	}
	c := &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAll reads the whole record set. A timestamp query parameter defeats
// intermediate HTTP caches, which otherwise happily serve stale script
// output.
func (c *Client) FetchAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, ledger.TransportErr("invalid ledger endpoint", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, ledger.TransportErr("build ledger request", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, ledger.TransportErr("cannot reach ledger endpoint", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ledger.TransportErr("read ledger response", err)
	}

	records, err := parseFetchBody(raw)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Fetched ledger records", "count", len(records), "status", resp.StatusCode)
	return records, nil
}

// submitPayload is the write shape the script expects. Exactly one amount is
// non-zero, selected by the input's currency.
type submitPayload struct {
	Item      string  `json:"item"`
	Payer     string  `json:"payer"`
	AmountTWD float64 `json:"amountTwd"`
	AmountJPY float64 `json:"amountJpy"`
	Note      string  `json:"note"`
}

func buildSubmitPayload(in core.NewExpenseInput) submitPayload {
	p := submitPayload{
		Item:  in.Item,
		Payer: string(in.Payer),
		Note:  in.Note,
	}
	switch in.Currency {
	case core.CurrencyTWD:
		p.AmountTWD = in.Amount.InexactFloat64()
	case core.CurrencyJPY:
		p.AmountJPY = in.Amount.InexactFloat64()
	}
	return p
}

// Submit appends one entry. The script does not return a structured body for
// writes, so any response at all counts as tentative success; the caller
// reconciles with a forced FetchAll.
func (c *Client) Submit(ctx context.Context, in core.NewExpenseInput) error {
	if err := in.Validate(); err != nil {
		return ledger.ValidationErr(err.Error(), err)
	}

	body, err := json.Marshal(buildSubmitPayload(in))
	if err != nil {
		return ledger.ValidationErr("serialize entry", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ledger.TransportErr("build ledger request", err)
	}
	// Apps Script web apps cannot answer CORS preflights, so the original
	// client ships JSON as a plain-text body. The script side parses it
	// regardless of the declared type.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ledger.TransportErr("cannot reach ledger endpoint", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; the body content is ignored.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	slog.InfoContext(ctx, "Submitted ledger entry", "item", in.Item, "payer", in.Payer,
		"currency", in.Currency, "status", resp.StatusCode)
	return nil
}
