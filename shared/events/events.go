package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// Event types
const (
	UserCreated = "user.created"

	AccountCreated = "account.created"
	BalanceUpdated = "balance.updated"

	JournalAppendRequested = "journal.append.requested"
)

// Stream names
const (
	UserEventsStream    = "user.events"
	AccountEventsStream = "account.events"

	// JournalPendingStream is the durable retry queue for journal entries
	// whose synchronous append failed after the balance change committed.
	JournalPendingStream = "journal.pending"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DecodeData re-decodes the generic Data payload into out.
func DecodeData(event Event, out any) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s payload: %w", event.Type, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", event.Type, err)
	}
	return nil
}

type UserCreatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type AccountCreatedEvent struct {
	AccountID string `json:"accountId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
}

type BalanceUpdatedEvent struct {
	AccountID  string       `json:"accountId"`
	NewBalance money.Amount `json:"newBalance"`
	Change     money.Amount `json:"change"`
	Direction  string       `json:"direction"`
	Version    int64        `json:"version"`
}

// JournalAppendRequestedEvent carries a journal entry together with the
// idempotency key it must be written under.
type JournalAppendRequestedEvent struct {
	IdempotencyKey string                `json:"idempotencyKey"`
	Record         models.MovementRecord `json:"record"`
	Attempts       int                   `json:"attempts"`
	LastError      string                `json:"lastError,omitempty"`
}
