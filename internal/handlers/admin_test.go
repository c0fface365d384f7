package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/auth"
	"ledger/internal/models"
	"ledger/internal/services"

	gorilla "github.com/gorilla/websocket"
)

func adminCredentials(admins ...string) stubCredentials {
	return stubCredentials{
		getByAccountIDFn: func(_ context.Context, accountID string) (models.Credential, error) {
			for _, admin := range admins {
				if admin == accountID {
					return models.Credential{AccountID: accountID, IsAdmin: true}, nil
				}
			}
			return models.Credential{}, apperr.ErrAccountNotFound
		},
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newTestHandler(stubLedger{
		setActiveFn: func(context.Context, string, string, bool) (models.Account, error) {
			t.Fatalf("ledger should not be called")
			return models.Account{}, nil
		},
	}, stubQueries{}, adminCredentials("root"))
	rr := do(t, h.Routes(), http.MethodPost, "/admin/accounts/acc-2/deactivate", bearer(t, "acc-1", false), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	rr = do(t, h.Routes(), http.MethodGet, "/admin/audit", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAdminSetActive(t *testing.T) {
	var gotActor, gotID string
	var gotActive bool
	h := newTestHandler(stubLedger{
		setActiveFn: func(_ context.Context, actorID, accountID string, active bool) (models.Account, error) {
			gotActor, gotID, gotActive = actorID, accountID, active
			return models.Account{ID: accountID, Active: active}, nil
		},
	}, stubQueries{}, adminCredentials("root"))

	rr := do(t, h.Routes(), http.MethodPost, "/admin/accounts/acc-2/deactivate", bearer(t, "root", true), nil)
	if rr.Code != http.StatusOK || gotID != "acc-2" || gotActive || gotActor != "root" {
		t.Fatalf("deactivate: status %d actor %q id %q active %v", rr.Code, gotActor, gotID, gotActive)
	}
	rr = do(t, h.Routes(), http.MethodPost, "/admin/accounts/acc-2/activate", bearer(t, "root", true), nil)
	if rr.Code != http.StatusOK || !gotActive {
		t.Fatalf("activate: status %d active %v", rr.Code, gotActive)
	}
}

func TestAdminAuditAndVerify(t *testing.T) {
	h := newTestHandler(stubLedger{}, stubQueries{
		auditFn: func(context.Context) (services.AuditReport, error) {
			return services.AuditReport{TotalBalances: 5, TotalAmounts: 5, Balanced: true}, nil
		},
		verifyFn: func(context.Context, string) (services.Verification, error) {
			return services.Verification{}, apperr.ErrAccountNotFound
		},
	}, adminCredentials("root"))

	rr := do(t, h.Routes(), http.MethodGet, "/admin/audit", bearer(t, "root", true), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody[services.AuditReport](t, rr); !body.Balanced || body.TotalBalances != 5 {
		t.Fatalf("unexpected audit %#v", body)
	}
	rr = do(t, h.Routes(), http.MethodGet, "/admin/accounts/missing/verify", bearer(t, "root", true), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminAuditLog(t *testing.T) {
	actor := "root"
	var gotPage, gotSize int
	h := newTestHandler(stubLedger{}, stubQueries{
		auditLogFn: func(_ context.Context, page, pageSize int) (services.AuditPage, error) {
			gotPage, gotSize = page, pageSize
			return services.AuditPage{
				Items: []models.AuditEntry{{
					ID:             "log-1",
					ActorAccountID: &actor,
					Action:         models.AuditAccountDeactivate,
					EntityType:     models.AuditEntityAccount,
					EntityID:       "acc-2",
					Data:           `{"active":false}`,
					CreatedAt:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
				}},
				TotalCount: 1,
				Page:       page,
				PageSize:   pageSize,
			}, nil
		},
	}, adminCredentials("root"))

	rr := do(t, h.Routes(), http.MethodGet, "/admin/audit-log?page=2&page_size=5", bearer(t, "root", true), nil)
	if rr.Code != http.StatusOK || gotPage != 2 || gotSize != 5 {
		t.Fatalf("status %d page %d size %d", rr.Code, gotPage, gotSize)
	}
	body := decodeBody[auditPageResponse](t, rr)
	if len(body.Items) != 1 || body.Items[0].Action != models.AuditAccountDeactivate || string(body.Items[0].Data) != `{"active":false}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestAdminClaimAloneDoesNotGrantAccess(t *testing.T) {
	a := newApp(t)
	s := a.register(t, "ana@example.com", "")
	rr := do(t, a.handler, http.MethodGet, "/admin/audit", bearer(t, s.Account.ID, true), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin credential, got %d", rr.Code)
	}
}

func TestDeactivationIsAudited(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	hash, err := auth.HashPassword("admin-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	reg, err := a.ledger.Register(ctx, services.RegisterRequest{
		Credential: &services.CredentialRequest{Email: "admin@bank.com", PasswordHash: hash, IsAdmin: true},
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	adminAuth := bearer(t, reg.Account.ID, true)
	customer := a.register(t, "ana@example.com", "5.00")

	rr := do(t, a.handler, http.MethodPost, "/admin/accounts/"+customer.Account.ID+"/deactivate", adminAuth, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, a.handler, http.MethodGet, "/admin/audit-log", adminAuth, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit log: expected 200, got %d", rr.Code)
	}
	body := decodeBody[auditPageResponse](t, rr)
	if body.TotalCount != 1 || len(body.Items) != 1 {
		t.Fatalf("unexpected audit log %s", rr.Body.String())
	}
	entry := body.Items[0]
	if entry.Action != models.AuditAccountDeactivate || entry.EntityID != customer.Account.ID ||
		entry.ActorAccountID == nil || *entry.ActorAccountID != reg.Account.ID {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestWSBalancesRejectsMissingToken(t *testing.T) {
	h := newTestHandler(stubLedger{}, stubQueries{}, stubCredentials{})
	rr := do(t, h.Routes(), http.MethodGet, "/ws/balances", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = do(t, h.Routes(), http.MethodGet, "/ws/balances?token=garbage", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWSBalancesPushesAfterDeposit(t *testing.T) {
	a := newApp(t)
	s := a.register(t, "ana@example.com", "10.00")
	server := httptest.NewServer(a.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/balances?token=" + s.Token
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for a.hub.Subscribers(s.Account.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := a.ledger.Deposit(context.Background(), services.MovementRequest{AccountID: s.Account.ID, AmountMinor: 500}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(payload), `"balance":"15.00"`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}
