package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

type fakeActivity struct {
	items     []storage.Activity
	lastLimit int
}

func (f *fakeActivity) RecordActivity(context.Context, storage.Activity) (bool, error) {
	return true, nil
}
func (f *fakeActivity) MarkExported(context.Context, string, time.Time) error { return nil }
func (f *fakeActivity) RecentActivity(_ context.Context, limit int) ([]storage.Activity, error) {
	f.lastLimit = limit
	return f.items, nil
}
func (f *fakeActivity) Ping(context.Context) error { return nil }

func newTestDeps() Deps {
	s := store.New()
	txs := store.NewTransactionStore()
	members := services.NewMembershipManager(s, nil)
	return Deps{
		Directory:    services.NewDirectory(s, nil),
		Members:      members,
		Ledger:       services.NewExpenseLedger(s, members, nil),
		Aggregator:   services.NewAggregator(s, txs, members, nil),
		Transactions: services.NewTransactionService(txs, nil),
		Auth:         auth.NewPasswordAuthenticator(auth.NewMemoryUsers()),
		Tokens:       auth.NewJWTManager("test-secret", time.Hour),
	}
}

func newTestServer(t *testing.T, deps Deps, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", deps, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

type idResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func TestHealthReadyAndMetrics(t *testing.T) {
	deps := newTestDeps()
	deps.Ready = func(context.Context) error { return errors.New("database unreachable") }
	srv := newTestServer(t, deps, Options{})

	expectStatus(t, do(t, srv, http.MethodGet, "/healthz", nil), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodGet, "/readyz", nil), http.StatusServiceUnavailable)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, `fintrack_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`) {
		t.Errorf("metrics missing labelled healthz counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics missing Go collector")
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("request id = %q", rec.Header().Get("X-Request-ID"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}
}

func TestParticipantsGroupsAndMembers(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})

	rec := do(t, srv, http.MethodPost, "/api/participants", map[string]string{"name": "Alice"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var verr errorResponse
	decode(t, rec, &verr)
	if verr.Fields["email"] == "" {
		t.Errorf("expected email field error, got %+v", verr)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/api/participants", `{"name":`), http.StatusBadRequest)

	var alice, group idResponse
	rec = do(t, srv, http.MethodPost, "/api/participants", map[string]string{"name": "Alice", "email": "alice@example.com"})
	expectStatus(t, rec, http.StatusCreated)
	decode(t, rec, &alice)

	rec = do(t, srv, http.MethodPost, "/api/groups", map[string]string{"name": "Trip"})
	expectStatus(t, rec, http.StatusCreated)
	decode(t, rec, &group)

	member := map[string]any{"participant_id": alice.ID, "role": "admin", "can_add_expense": true}
	expectStatus(t, do(t, srv, http.MethodPost, "/api/groups/"+group.ID+"/members", member), http.StatusCreated)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/groups/"+group.ID+"/members", member), http.StatusConflict)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/groups/missing/members", member), http.StatusNotFound)

	rec = do(t, srv, http.MethodGet, "/api/groups/"+group.ID+"/members", nil)
	expectStatus(t, rec, http.StatusOK)
	var members []struct {
		ID          string `json:"id"`
		Role        string `json:"role"`
		Participant *struct {
			Name string `json:"name"`
		} `json:"participant"`
	}
	decode(t, rec, &members)
	if len(members) != 1 || members[0].Participant == nil || members[0].Participant.Name != "Alice" || members[0].Role != "admin" {
		t.Fatalf("members = %+v", members)
	}

	rec = do(t, srv, http.MethodPatch, "/api/participants/"+alice.ID, map[string]string{"mobile": "555-0100"})
	expectStatus(t, rec, http.StatusOK)
	var patched struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	}
	decode(t, rec, &patched)
	if patched.Name != "Alice" || patched.Mobile != "555-0100" {
		t.Errorf("patched = %+v", patched)
	}

	expectStatus(t, do(t, srv, http.MethodPatch, "/api/participants/nope", map[string]string{"name": "X"}), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/members/nope", nil), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/members/"+members[0].ID, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/groups/"+group.ID, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/groups/"+group.ID, nil), http.StatusNotFound)
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})

	var alice, bob, group idResponse
	decode(t, do(t, srv, http.MethodPost, "/api/participants", map[string]string{"name": "Alice", "email": "alice@example.com"}), &alice)
	decode(t, do(t, srv, http.MethodPost, "/api/participants", map[string]string{"name": "Bob", "email": "bob@example.com"}), &bob)
	decode(t, do(t, srv, http.MethodPost, "/api/groups", map[string]string{"name": "Trip"}), &group)
	for _, id := range []string{alice.ID, bob.ID} {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/groups/"+group.ID+"/members", map[string]any{"participant_id": id, "role": "member"}), http.StatusCreated)
	}

	rec := do(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"group_id": group.ID, "amount": 0, "category": "", "expense_date": "2025-04-10", "type": "expense",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	var verr errorResponse
	decode(t, rec, &verr)
	for _, field := range []string{"paid_by", "amount", "category"} {
		if verr.Fields[field] == "" {
			t.Errorf("missing field error %q in %+v", field, verr.Fields)
		}
	}

	rec = do(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"group_id": group.ID, "paid_by": alice.ID, "amount": 90, "category": "Food", "expense_date": "2025-04-10",
		"type": "expense", "split_type": "custom",
		"splits": []map[string]any{{"participant_id": alice.ID, "amount": 50}, {"participant_id": bob.ID, "amount": 50}},
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	decode(t, rec, &verr)
	if verr.Fields["splits"] == "" {
		t.Errorf("expected splits error, got %+v", verr.Fields)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"group_id": "missing", "paid_by": alice.ID, "amount": 10, "category": "Food", "expense_date": "2025-04-10", "type": "expense",
	}), http.StatusNotFound)

	rec = do(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"group_id": group.ID, "paid_by": alice.ID, "amount": 100, "category": "Food", "description": "Dinner",
		"expense_date": "2025-04-10", "type": "expense", "split_type": "equal",
	})
	expectStatus(t, rec, http.StatusCreated)
	var expense struct {
		ID     string `json:"id"`
		Splits []struct {
			ID            string  `json:"id"`
			ParticipantID string  `json:"participant_id"`
			Amount        float64 `json:"amount"`
			Settled       bool    `json:"settled"`
		} `json:"splits"`
	}
	decode(t, rec, &expense)
	if len(expense.Splits) != 2 {
		t.Fatalf("splits = %+v", expense.Splits)
	}
	for _, s := range expense.Splits {
		if s.Amount != 50 {
			t.Errorf("split amount = %v", s.Amount)
		}
		if s.Settled != (s.ParticipantID == alice.ID) {
			t.Errorf("only the payer's split starts settled: %+v", s)
		}
	}

	rec = do(t, srv, http.MethodGet, "/api/groups/"+group.ID+"/balances", nil)
	expectStatus(t, rec, http.StatusOK)
	var balances struct {
		Debts []struct {
			Amount float64 `json:"amount"`
		} `json:"debts"`
	}
	decode(t, rec, &balances)
	if len(balances.Debts) != 1 || balances.Debts[0].Amount != 50 {
		t.Errorf("debts = %+v", balances.Debts)
	}

	rec = do(t, srv, http.MethodGet, "/api/reports/summary?groupId="+group.ID+"&from=2025-04-01&to=2025-04-10", nil)
	expectStatus(t, rec, http.StatusOK)
	var summary struct {
		TotalExpense float64 `json:"totalExpense"`
		Balance      float64 `json:"balance"`
	}
	decode(t, rec, &summary)
	if summary.TotalExpense != 100 || summary.Balance != -100 {
		t.Errorf("summary = %+v", summary)
	}
	expectStatus(t, do(t, srv, http.MethodGet, "/api/reports/summary?from=April", nil), http.StatusUnprocessableEntity)

	rec = do(t, srv, http.MethodGet, "/api/analytics/trends?groupId="+group.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var trends struct {
		Monthly []struct {
			Key    string  `json:"key"`
			Amount float64 `json:"amount"`
		} `json:"monthly"`
	}
	decode(t, rec, &trends)
	if len(trends.Monthly) != 1 || trends.Monthly[0].Key != "2025-04" {
		t.Errorf("monthly = %+v", trends.Monthly)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/api/expenses/"+expense.ID+"/settle", map[string]string{}), http.StatusUnprocessableEntity)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/expenses/missing/settle", map[string]string{"participant_id": bob.ID}), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/expenses/"+expense.ID+"/settle", map[string]string{"participant_id": bob.ID}), http.StatusOK)

	decode(t, do(t, srv, http.MethodGet, "/api/groups/"+group.ID+"/balances", nil), &balances)
	if len(balances.Debts) != 0 {
		t.Errorf("settled group should have no debts: %+v", balances.Debts)
	}

	rec = do(t, srv, http.MethodGet, "/api/groups/"+group.ID+"/expenses", nil)
	expectStatus(t, rec, http.StatusOK)
	var details []struct {
		PayerName string `json:"payer_name"`
	}
	decode(t, rec, &details)
	if len(details) != 1 || details[0].PayerName != "Alice" {
		t.Errorf("details = %+v", details)
	}

	expectStatus(t, do(t, srv, http.MethodPatch, "/api/expenses/"+expense.ID, map[string]string{"category": "Dining"}), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodPatch, "/api/splits/nope", map[string]bool{"settled": true}), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/expenses/"+expense.ID, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/expenses/"+expense.ID, nil), http.StatusNotFound)
}

func TestTransactions(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount": 2500, "date": "2025-04-01", "category": "Salary", "description": "Salary", "type": "income",
	})
	expectStatus(t, rec, http.StatusCreated)
	var tx idResponse
	decode(t, rec, &tx)

	expectStatus(t, do(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount": -1, "date": "2025-04-01", "category": "Salary", "type": "income",
	}), http.StatusUnprocessableEntity)

	records := []map[string]any{{
		"transactionId": "pay-1", "amount": 120, "date": "2025-04-02", "description": "Groceries",
		"type": "debit", "category": "Food", "paymentMethod": "UPI",
	}}
	var result struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	rec = do(t, srv, http.MethodPost, "/api/transactions/import", records)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &result)
	if result.Imported != 1 || result.Skipped != 0 {
		t.Errorf("first import = %+v", result)
	}
	decode(t, do(t, srv, http.MethodPost, "/api/transactions/import", records), &result)
	if result.Imported != 0 || result.Skipped != 1 {
		t.Errorf("repeated import = %+v", result)
	}

	rec = do(t, srv, http.MethodGet, "/api/transactions/export", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 || lines[0] != "id,date,type,category,description,amount" {
		t.Errorf("csv = %q", rec.Body.String())
	}

	expectStatus(t, do(t, srv, http.MethodPut, "/api/transactions/"+tx.ID, map[string]any{
		"amount": 2600, "date": "2025-04-01", "category": "Salary", "description": "Raise", "type": "income",
	}), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodPut, "/api/transactions/nope", map[string]any{
		"amount": 1, "date": "2025-04-01", "category": "Salary", "type": "income",
	}), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, "/api/transactions/"+tx.ID, nil), http.StatusNotFound)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})

	creds := map[string]string{"email": "ana@example.com", "password": "correct-horse", "name": "Ana"}
	expectStatus(t, do(t, srv, http.MethodPost, "/api/auth/register", creds), http.StatusCreated)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/auth/register", creds), http.StatusConflict)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/auth/register", map[string]string{"email": "x@example.com", "password": "short"}), http.StatusUnprocessableEntity)

	expectStatus(t, do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "wrong-password"}), http.StatusUnauthorized)

	rec := do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "correct-horse"})
	expectStatus(t, rec, http.StatusOK)
	var login struct {
		Token string `json:"token"`
		User  struct {
			Email        string `json:"email"`
			PasswordHash string `json:"password_hash"`
		} `json:"user"`
	}
	decode(t, rec, &login)
	if login.Token == "" || login.User.Email != "ana@example.com" || login.User.PasswordHash != "" {
		t.Fatalf("login = %+v", login)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	me := httptest.NewRecorder()
	srv.Handler.ServeHTTP(me, req)
	expectStatus(t, me, http.StatusOK)
	if !strings.Contains(me.Body.String(), "ana@example.com") {
		t.Errorf("me = %s", me.Body.String())
	}
	expectStatus(t, do(t, srv, http.MethodGet, "/api/auth/me", nil), http.StatusUnauthorized)
}

func TestActivity(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{})
	expectStatus(t, do(t, srv, http.MethodGet, "/api/activity", nil), http.StatusServiceUnavailable)

	deps := newTestDeps()
	repo := &fakeActivity{items: []storage.Activity{{EventID: "e1", EventType: "expense.recorded", Description: "Expense of 100.00 recorded: Dinner"}}}
	deps.Activity = repo
	srv = newTestServer(t, deps, Options{})

	rec := do(t, srv, http.MethodGet, "/api/activity?limit=10000", nil)
	expectStatus(t, rec, http.StatusOK)
	if repo.lastLimit != storage.MaxActivityLimit {
		t.Errorf("limit = %d, want clamp to %d", repo.lastLimit, storage.MaxActivityLimit)
	}
	var items []storage.Activity
	decode(t, rec, &items)
	if len(items) != 1 || items[0].EventID != "e1" {
		t.Errorf("items = %+v", items)
	}

	do(t, srv, http.MethodGet, "/api/activity?limit=abc", nil)
	if repo.lastLimit != storage.DefaultActivityLimit {
		t.Errorf("limit = %d, want default", repo.lastLimit)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, newTestDeps(), Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, srv, http.MethodGet, "/api/groups", nil), http.StatusOK)
	}
	rec := do(t, srv, http.MethodGet, "/api/groups", nil)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	expectStatus(t, do(t, srv, http.MethodGet, "/healthz", nil), http.StatusOK)
}

func TestGraphQLMounted(t *testing.T) {
	deps := newTestDeps()
	deps.GraphQL = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"ok": true}})
	})
	srv := newTestServer(t, deps, Options{})
	expectStatus(t, do(t, srv, http.MethodPost, "/graphql", map[string]string{"query": "{ ok }"}), http.StatusOK)
}
