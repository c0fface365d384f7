package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to an account's subscribers after a committed change.
type BalanceUpdate struct {
	AccountID     string `json:"account_id"`
	AccountNumber string `json:"account_number"`
	BalanceMinor  int64  `json:"balance_minor"`
	Balance       string `json:"balance"`
	TransactionID string `json:"transaction_id,omitempty"`
	Kind          string `json:"kind,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	h.clients[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

func (h *Hub) Subscribers(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// BroadcastBalance never blocks; slow clients drop updates.
func (h *Hub) BroadcastBalance(update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[update.AccountID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
