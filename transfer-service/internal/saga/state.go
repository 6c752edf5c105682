package saga

import (
	"time"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

type State string

const (
	StateStart       State = "START"
	StateResolving   State = "RESOLVING"
	StateMovingFunds State = "MOVING_FUNDS"
	StateRecording   State = "RECORDING"
	StateCompleted   State = "COMPLETED"
	StateRejected    State = "REJECTED"
	StatePartial     State = "PARTIAL"
)

var transitions = map[State][]State{
	StateStart:       {StateResolving},
	StateResolving:   {StateRejected, StateMovingFunds},
	StateMovingFunds: {StateRejected, StateRecording},
	StateRecording:   {StateCompleted, StatePartial},
}

// rejectReasons lists the reasons a state may reject with.
var rejectReasons = map[State][]string{
	StateResolving:   {errs.ReasonNotFound, errs.ReasonInvalid, errs.ReasonUpstream},
	StateMovingFunds: {errs.ReasonInsufficientFunds, errs.ReasonNotFound, errs.ReasonInvalid, errs.ReasonUpstream},
}

// CanTransitionTo reports whether the saga may move from s to next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanRejectWith reports whether s may end in REJECTED with reason.
func (s State) CanRejectWith(reason string) bool {
	for _, allowed := range rejectReasons[s] {
		if allowed == reason {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StatePartial
}

// Record is the replay cache entry for one transferId. It is not the source
// of truth for whether funds moved; the ledger's transfer row is.
type Record struct {
	TransferID     string                  `json:"transferId"`
	State          State                   `json:"state"`
	FromAccountID  string                  `json:"fromAccountId"`
	ToAccountEmail string                  `json:"toAccountEmail"`
	ToAccountID    string                  `json:"toAccountId,omitempty"`
	Amount         money.Amount            `json:"amount"`
	MovedAt        time.Time               `json:"movedAt,omitempty"`
	Outcome        *models.TransferOutcome `json:"outcome,omitempty"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func newRecord(intent models.TransferIntent) *Record {
	return &Record{
		TransferID:     intent.TransferID,
		State:          StateStart,
		FromAccountID:  intent.FromAccountID,
		ToAccountEmail: models.NormalizeEmail(intent.ToAccountEmail),
		Amount:         intent.Amount,
	}
}

// Matches reports whether intent asks for the same transfer as r.
func (r *Record) Matches(intent models.TransferIntent) bool {
	return r.FromAccountID == intent.FromAccountID &&
		r.ToAccountEmail == models.NormalizeEmail(intent.ToAccountEmail) &&
		r.Amount.Equal(intent.Amount)
}
