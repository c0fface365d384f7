package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/ids"
	"ledger/internal/logging"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/store/memory"
	"ledger/internal/websocket"
)

type stubLedger struct {
	registerFn  func(ctx context.Context, req services.RegisterRequest) (services.Registration, error)
	depositFn   func(ctx context.Context, req services.MovementRequest) (services.Receipt, error)
	withdrawFn  func(ctx context.Context, req services.MovementRequest) (services.Receipt, error)
	transferFn  func(ctx context.Context, req services.TransferRequest) (services.Receipt, error)
	setActiveFn func(ctx context.Context, actorID, accountID string, active bool) (models.Account, error)
}

func (s stubLedger) Register(ctx context.Context, req services.RegisterRequest) (services.Registration, error) {
	if s.registerFn == nil {
		return services.Registration{}, nil
	}
	return s.registerFn(ctx, req)
}

func (s stubLedger) Deposit(ctx context.Context, req services.MovementRequest) (services.Receipt, error) {
	if s.depositFn == nil {
		return services.Receipt{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubLedger) Withdraw(ctx context.Context, req services.MovementRequest) (services.Receipt, error) {
	if s.withdrawFn == nil {
		return services.Receipt{}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubLedger) Transfer(ctx context.Context, req services.TransferRequest) (services.Receipt, error) {
	if s.transferFn == nil {
		return services.Receipt{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubLedger) SetActive(ctx context.Context, actorID, accountID string, active bool) (models.Account, error) {
	if s.setActiveFn == nil {
		return models.Account{}, nil
	}
	return s.setActiveFn(ctx, actorID, accountID, active)
}

type stubQueries struct {
	getBalanceFn func(ctx context.Context, accountID string) (models.Account, error)
	listFn       func(ctx context.Context, accountID string, page, pageSize int) (services.Page, error)
	recentFn     func(ctx context.Context, accountID string, n int) ([]models.Transaction, error)
	verifyFn     func(ctx context.Context, accountID string) (services.Verification, error)
	auditFn      func(ctx context.Context) (services.AuditReport, error)
	auditLogFn   func(ctx context.Context, page, pageSize int) (services.AuditPage, error)
}

func (s stubQueries) GetBalance(ctx context.Context, accountID string) (models.Account, error) {
	if s.getBalanceFn == nil {
		return models.Account{ID: accountID, Active: true}, nil
	}
	return s.getBalanceFn(ctx, accountID)
}

func (s stubQueries) ListTransactions(ctx context.Context, accountID string, page, pageSize int) (services.Page, error) {
	if s.listFn == nil {
		return services.Page{Page: page, PageSize: pageSize}, nil
	}
	return s.listFn(ctx, accountID, page, pageSize)
}

func (s stubQueries) GetRecent(ctx context.Context, accountID string, n int) ([]models.Transaction, error) {
	if s.recentFn == nil {
		return nil, nil
	}
	return s.recentFn(ctx, accountID, n)
}

func (s stubQueries) VerifyAccount(ctx context.Context, accountID string) (services.Verification, error) {
	if s.verifyFn == nil {
		return services.Verification{AccountID: accountID, Consistent: true}, nil
	}
	return s.verifyFn(ctx, accountID)
}

func (s stubQueries) Audit(ctx context.Context) (services.AuditReport, error) {
	if s.auditFn == nil {
		return services.AuditReport{Balanced: true}, nil
	}
	return s.auditFn(ctx)
}

func (s stubQueries) AuditLog(ctx context.Context, page, pageSize int) (services.AuditPage, error) {
	if s.auditLogFn == nil {
		return services.AuditPage{Page: page, PageSize: pageSize}, nil
	}
	return s.auditLogFn(ctx, page, pageSize)
}

type stubProfiles struct {
	getFn    func(ctx context.Context, accountID string) (models.Profile, error)
	updateFn func(ctx context.Context, accountID string, update services.ProfileUpdate) (models.Profile, error)
}

func (s stubProfiles) Get(ctx context.Context, accountID string) (models.Profile, error) {
	if s.getFn == nil {
		return models.Profile{AccountID: accountID}, nil
	}
	return s.getFn(ctx, accountID)
}

func (s stubProfiles) Update(ctx context.Context, accountID string, update services.ProfileUpdate) (models.Profile, error) {
	if s.updateFn == nil {
		return models.Profile{AccountID: accountID}, nil
	}
	return s.updateFn(ctx, accountID, update)
}

type stubCredentials struct {
	getByEmailFn     func(ctx context.Context, email string) (models.Credential, error)
	getByAccountIDFn func(ctx context.Context, accountID string) (models.Credential, error)
}

func (s stubCredentials) GetByEmail(ctx context.Context, email string) (models.Credential, error) {
	return s.getByEmailFn(ctx, email)
}

func (s stubCredentials) GetByAccountID(ctx context.Context, accountID string) (models.Credential, error) {
	return s.getByAccountIDFn(ctx, accountID)
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		StoreDriver:    config.DriverMemory,
		TxAttempts:     1,
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
}

func newTestHandler(ledger Ledger, queries Queries, credentials CredentialStore) *Handler {
	return New(testConfig(), ledger, queries, stubProfiles{}, credentials, websocket.NewHub(), logging.Discard())
}

func bearer(t *testing.T, accountID string, admin bool) string {
	t.Helper()
	token, err := auth.GenerateToken("secret", accountID, admin, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func do(t *testing.T, handler http.Handler, method, path, authorization string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
	return out
}

// app wires real services over the in-memory store.
type app struct {
	handler http.Handler
	ledger  *services.LedgerService
	store   *memory.Store
	hub     *websocket.Hub
}

func newApp(t *testing.T) *app {
	t.Helper()
	st := memory.New()
	hub := websocket.NewHub()
	log := logging.Discard()
	ledger := services.NewLedgerService(st, ids.NewGenerator(), hub, log)
	h := New(testConfig(), ledger, services.NewQueryService(st, log), services.NewProfileService(st, log), st.Credentials(), hub, log)
	return &app{handler: h.Routes(), ledger: ledger, store: st, hub: hub}
}

type session struct {
	Token   string      `json:"token"`
	Account accountView `json:"account"`
}

func (a *app) register(t *testing.T, email, opening string) session {
	t.Helper()
	rr := do(t, a.handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":           email,
		"password":        "password-123",
		"opening_deposit": opening,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rr.Code, rr.Body.String())
	}
	return decodeBody[session](t, rr)
}
