package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"tabi/internal/core"
	"tabi/internal/ledger"
	"tabi/internal/store"
)

const maxRequestBody = 64 << 10

type expenseJSON struct {
	RowIndex  int         `json:"rowIndex,omitempty"`
	Date      string      `json:"date"`
	Item      string      `json:"item"`
	Payer     string      `json:"payer"`
	AmountTWD json.Number `json:"amountTwd"`
	AmountJPY json.Number `json:"amountJpy"`
	Note      string      `json:"note"`
}

type totalsJSON struct {
	TWD json.Number `json:"twd"`
	JPY json.Number `json:"jpy"`
}

type expensesResponse struct {
	Records []expenseJSON `json:"records"`
	Totals  totalsJSON    `json:"totals"`
	State   string        `json:"state"`
	Stale   bool          `json:"stale,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func toExpenseJSON(r core.ExpenseRecord) expenseJSON {
	return expenseJSON{
		RowIndex:  r.RowIndex,
		Date:      r.Date,
		Item:      r.Item,
		Payer:     r.Payer,
		AmountTWD: json.Number(r.AmountTWD.String()),
		AmountJPY: json.Number(r.AmountJPY.String()),
		Note:      r.Note,
	}
}

func buildExpensesResponse(st *store.Store) expensesResponse {
	records := st.Records()
	totals := core.SumTotals(records)
	snap := st.Snapshot()

	resp := expensesResponse{
		Records: make([]expenseJSON, 0, len(records)),
		Totals: totalsJSON{
			TWD: json.Number(totals.TWD.String()),
			JPY: json.Number(totals.JPY.String()),
		},
		State: snap.State.String(),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, toExpenseJSON(r))
	}
	if snap.LastError != nil {
		resp.Error = userMessage(snap.LastError)
		// Records shown alongside an error are the last known good set.
		resp.Stale = len(records) > 0
	}
	return resp
}

// handleListExpenses refreshes the cache (forced with ?force=1) and returns
// records plus derived totals. A fetch failure still answers 200 with the
// stale records and a displayable message: the client keeps the last known
// good list visible with a retry affordance.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"

	if err := s.store.Refresh(r.Context(), force); err != nil {
		slog.WarnContext(r.Context(), "Expense refresh failed",
			"force", force, "kind", ledger.KindOf(err).String(), "error", err)
	}

	writeJSON(w, http.StatusOK, buildExpensesResponse(s.store))
}

type createExpenseRequest struct {
	Item     string      `json:"item"`
	Payer    string      `json:"payer"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Note     string      `json:"note"`
}

type createExpenseResponse struct {
	Queued bool   `json:"queued,omitempty"`
	Error  string `json:"error,omitempty"`
	// Post-submission snapshot so the client renders the reconciled list
	// without a second round-trip.
	Expenses *expensesResponse `json:"expenses,omitempty"`
}

// handleCreateExpense validates the entry, submits it to the ledger, and
// then forces a refresh regardless of the submission outcome. The local
// cache is never patched optimistically; whatever the forced fetch returns
// is the truth.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, createExpenseResponse{Error: "請求格式不正確"})
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount.String())
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, createExpenseResponse{Error: "金額格式不正確"})
			return
		}
		amount = parsed
	}

	in := core.NewExpenseInput{
		Item:     strings.TrimSpace(req.Item),
		Payer:    core.Payer(req.Payer),
		Amount:   amount,
		Currency: core.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		Note:     strings.TrimSpace(req.Note),
	}

	err := s.submit.SubmitEntry(r.Context(), in)
	if errors.Is(err, ledger.ErrValidation) {
		// Never reached the network; nothing to reconcile.
		writeJSON(w, http.StatusUnprocessableEntity, createExpenseResponse{Error: userMessage(err)})
		return
	}

	// Success or transport failure alike: resynchronize with the remote so
	// the client never renders an unconfirmed echo.
	if rerr := s.store.Refresh(r.Context(), true); rerr != nil {
		slog.WarnContext(r.Context(), "Post-submission refresh failed", "error", rerr)
	}
	expenses := buildExpensesResponse(s.store)

	if err != nil {
		slog.ErrorContext(r.Context(), "Expense submission failed",
			"item", in.Item, "kind", ledger.KindOf(err).String(), "error", err)
		writeJSON(w, http.StatusBadGateway, createExpenseResponse{
			Queued:   errors.Is(err, ledger.ErrTransport),
			Error:    userMessage(err),
			Expenses: &expenses,
		})
		return
	}

	writeJSON(w, http.StatusCreated, createExpenseResponse{Expenses: &expenses})
}

// userMessage maps a classified failure to the message the client shows.
// Wording follows the original app's diagnostics.
func userMessage(err error) string {
	switch ledger.KindOf(err) {
	case ledger.KindTransport:
		return "無法連線到 Google Sheet，請檢查網路連線"
	case ledger.KindPermission:
		return "無法載入資料：請確認 GAS 部署權限為「任何人」"
	default:
		return ledger.DisplayMessage(err)
	}
}
