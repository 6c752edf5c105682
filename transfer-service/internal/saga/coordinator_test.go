package saga

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/eaglebank/wallet/shared/cqrs"
	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/journal"
	"github.com/eaglebank/wallet/shared/models"
	"github.com/eaglebank/wallet/shared/money"
)

// ---- fakes ----

type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]models.RecipientView
	calls   int
	failErr error
}

func (d *fakeDirectory) ResolveRecipient(_ context.Context, email string) (models.RecipientView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failErr != nil {
		return models.RecipientView{}, d.failErr
	}
	r, ok := d.entries[email]
	if !ok {
		return models.RecipientView{}, errs.NotFound("Recipient user not found.")
	}
	return r, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]money.Amount
	applied  map[string]cqrs.TransferFundsCommand
	calls    int
	failErr  error
	// lostReplies is the number of calls that commit and then time out.
	lostReplies int
}

func newFakeLedger(balances map[string]string) *fakeLedger {
	l := &fakeLedger{balances: map[string]money.Amount{}, applied: map[string]cqrs.TransferFundsCommand{}}
	for id, b := range balances {
		l.balances[id] = money.MustParse(b)
	}
	return l
}

func (l *fakeLedger) AtomicTransfer(_ context.Context, cmd cqrs.TransferFundsCommand) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failErr != nil {
		return false, l.failErr
	}
	if prev, ok := l.applied[cmd.TransferID]; ok {
		if prev.FromAccountID != cmd.FromAccountID || prev.ToAccountID != cmd.ToAccountID || !prev.Amount.Equal(cmd.Amount) {
			return false, errs.IdempotencyConflict("transferId reused")
		}
		return true, l.lostReply()
	}
	from, ok := l.balances[cmd.FromAccountID]
	if !ok {
		return false, errs.NotFound("Account not found")
	}
	if from.LessThan(cmd.Amount) {
		return false, errs.InsufficientFunds()
	}
	l.balances[cmd.FromAccountID], _ = from.Sub(cmd.Amount)
	l.balances[cmd.ToAccountID] = l.balances[cmd.ToAccountID].Add(cmd.Amount)
	l.applied[cmd.TransferID] = cmd
	return false, l.lostReply()
}

func (l *fakeLedger) lostReply() error {
	if l.lostReplies == 0 {
		return nil
	}
	l.lostReplies--
	return errs.Upstream("account-service unavailable", context.DeadlineExceeded)
}

func (l *fakeLedger) set(f func(l *fakeLedger)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(l)
}

func (l *fakeLedger) balance(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id].String()
}

type fakeJournal struct {
	mu      sync.Mutex
	records map[string]models.MovementRecord
	down    bool
}

func (j *fakeJournal) Append(_ context.Context, record models.MovementRecord, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.down {
		return errs.Upstream("journal unavailable", errors.New("connection refused"))
	}
	if _, ok := j.records[key]; !ok {
		j.records[key] = record
	}
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []journal.Entry
	down    bool
}

func (q *fakeQueue) Enqueue(_ context.Context, entry journal.Entry, _ error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.down {
		return errors.New("redis unavailable")
	}
	q.entries = append(q.entries, entry)
	return nil
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func (s *memoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.TransferID] = *r
	return nil
}

func (s *memoryStore) Stale(_ context.Context, before time.Time, limit int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.records {
		if (r.State == StateMovingFunds || r.State == StateRecording) && !r.UpdatedAt.After(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memoryStore) state(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].State
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memoryLocker) Lock(_ context.Context, key string) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, errs.TransferInProgress(errors.New("lock already taken"))
	}
	l.held[key] = true
	return func(context.Context) {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

// ---- harness ----

type harness struct {
	coordinator *Coordinator
	directory   *fakeDirectory
	ledger      *fakeLedger
	journal     *fakeJournal
	queue       *fakeQueue
	store       *memoryStore
	locker      *memoryLocker
	spans       *tracetest.SpanRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		directory: &fakeDirectory{entries: map[string]models.RecipientView{
			"alice@example.com": {UserID: "usr-a", AccountID: "acc-a", Name: "Alice"},
			"bob@example.com":   {UserID: "usr-b", AccountID: "acc-b", Name: "Bob"},
		}},
		ledger:  newFakeLedger(map[string]string{"acc-a": "100.00", "acc-b": "0.00"}),
		journal: &fakeJournal{records: map[string]models.MovementRecord{}},
		queue:   &fakeQueue{},
		store:   &memoryStore{records: map[string]Record{}},
		locker:  &memoryLocker{held: map[string]bool{}},
		spans:   tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	recorder := journal.NewRecorder(h.journal, h.queue, journal.RetryPolicy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		AttemptTimeout:  time.Second,
	}, nil)

	h.coordinator = NewCoordinator(Dependencies{
		Resolver: h.directory,
		Ledger:   h.ledger,
		Recorder: recorder,
		Store:    h.store,
		Locker:   h.locker,
		LedgerRetry: journal.RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			AttemptTimeout:  time.Second,
		},
		Tracer: tp.Tracer("saga-test"),
	}, nil)
	return h
}

func intent(id, email, amount string) models.TransferIntent {
	return models.TransferIntent{
		TransferID:     id,
		FromAccountID:  "acc-a",
		ToAccountEmail: email,
		Amount:         money.MustParse(amount),
	}
}

// ---- tests ----

func TestTransferCompletes(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "Bob@Example.com ", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, models.TransferCompleted, outcome.Status)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "40.00", h.ledger.balance("acc-b"))

	require.Len(t, h.journal.records, 2)
	out := h.journal.records["trf-1:out"]
	in := h.journal.records["trf-1:in"]
	assert.Equal(t, models.MovementTransferOut, out.Kind)
	assert.Equal(t, "acc-a", out.AccountID)
	assert.Equal(t, "acc-b", out.CounterpartyAccountID)
	assert.Equal(t, models.MovementTransferIn, in.Kind)
	assert.Equal(t, "acc-b", in.AccountID)
	assert.Equal(t, "trf-1", in.Reference)
	assert.Equal(t, out.Timestamp, in.Timestamp)

	assert.Equal(t, StateCompleted, h.store.records["trf-1"].State)

	var names []string
	for _, span := range h.spans.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{"transfer.resolve", "transfer.move_funds", "transfer.record", "transfer.execute"}, names)
}

func TestUnknownRecipientIsRejected(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "nobody@example.com", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, models.TransferRejected, outcome.Status)
	assert.Equal(t, errs.ReasonNotFound, outcome.Reason)
	assert.Equal(t, "Recipient user not found.", outcome.Message)
	assert.Zero(t, h.ledger.calls)
	assert.Equal(t, "100.00", h.ledger.balance("acc-a"))
	assert.Empty(t, h.journal.records)
}

func TestTransferToSelfIsRejected(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "alice@example.com", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, models.TransferRejected, outcome.Status)
	assert.Equal(t, errs.ReasonInvalid, outcome.Reason)
	assert.Equal(t, "Cannot transfer money to yourself.", outcome.Message)
	assert.Zero(t, h.ledger.calls)
	assert.Equal(t, "100.00", h.ledger.balance("acc-a"))
}

func TestInvalidIntentIsRejectedWithoutSideEffects(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		intent models.TransferIntent
	}{
		{name: "zero amount", intent: intent("trf-1", "bob@example.com", "0")},
		{name: "missing transferId", intent: intent("", "bob@example.com", "10.00")},
		{name: "missing email", intent: intent("trf-1", "", "10.00")},
	}
	for _, tt := range tests {
		outcome, err := h.coordinator.Execute(context.Background(), tt.intent)
		require.NoError(t, err, tt.name)
		assert.Equal(t, models.TransferRejected, outcome.Status, tt.name)
		assert.Equal(t, errs.ReasonInvalid, outcome.Reason, tt.name)
	}
	assert.Zero(t, h.ledger.calls)
	assert.Empty(t, h.store.records)
}

func TestInsufficientFundsIsRejectedAndCached(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "150.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, outcome.Status)
	assert.Equal(t, errs.ReasonInsufficientFunds, outcome.Reason)
	assert.Equal(t, "Insufficient funds.", outcome.Message)

	replay, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "150.00"))
	require.NoError(t, err)
	assert.Equal(t, outcome, replay)
	assert.Equal(t, 1, h.ledger.calls)
}

func TestJournalOutageEndsPartialAndReplayCompletes(t *testing.T) {
	h := newHarness(t)
	h.journal.down = true

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferPartial, outcome.Status)
	assert.True(t, outcome.FundsMoved())
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "40.00", h.ledger.balance("acc-b"))
	assert.Len(t, h.queue.entries, 2)
	assert.Equal(t, StatePartial, h.store.records["trf-1"].State)

	h.journal.down = false
	replay, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, models.TransferCompleted, replay.Status)
	assert.Equal(t, 1, h.ledger.calls)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Len(t, h.journal.records, 2)
	assert.Equal(t, StateCompleted, h.store.records["trf-1"].State)
}

func TestLostJournalEntriesKeepRecording(t *testing.T) {
	h := newHarness(t)
	h.journal.down = true
	h.queue.down = true

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferPartial, outcome.Status)
	assert.Equal(t, StateRecording, h.store.records["trf-1"].State)

	h.journal.down = false
	replay, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, replay.Status)
	assert.Equal(t, 1, h.ledger.calls)
}

func TestReplayOfCompletedTransferNeverDebitsTwice(t *testing.T) {
	h := newHarness(t)

	first, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	second, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.ledger.calls)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
}

func TestResolverOutageIsNotCached(t *testing.T) {
	h := newHarness(t)
	h.directory.failErr = errs.Upstream("user-service unavailable", errors.New("timeout"))

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, outcome.Status)
	assert.Equal(t, errs.ReasonUpstream, outcome.Reason)
	assert.NotEqual(t, StateRejected, h.store.state("trf-1"))
	assert.Zero(t, h.ledger.calls)

	h.directory.failErr = nil
	retry, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, retry.Status)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
}

func TestLedgerReplyLostAfterCommitCompletes(t *testing.T) {
	h := newHarness(t)
	h.ledger.lostReplies = 1

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)

	assert.Equal(t, models.TransferCompleted, outcome.Status)
	assert.Equal(t, 2, h.ledger.calls)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "40.00", h.ledger.balance("acc-b"))
	assert.Len(t, h.journal.records, 2)
	assert.Equal(t, StateCompleted, h.store.state("trf-1"))
}

func TestLedgerStillFailingAfterCommitLeavesTransferPending(t *testing.T) {
	h := newHarness(t)
	h.ledger.lostReplies = 10

	_, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUpstream))
	assert.Equal(t, errs.ReasonTransferPending, errs.ReasonOf(err))
	assert.Equal(t, 3, h.ledger.calls)

	// Funds moved, so the transfer must not be reported or cached as rejected.
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, StateMovingFunds, h.store.state("trf-1"))
	assert.Nil(t, h.store.records["trf-1"].Outcome)
	assert.Empty(t, h.journal.records)

	// The replay settles from MOVING_FUNDS without resolving the recipient again.
	h.ledger.set(func(l *fakeLedger) { l.lostReplies = 0 })
	delete(h.directory.entries, "bob@example.com")
	resolves := h.directory.calls

	replay, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, replay.Status)
	assert.Equal(t, resolves, h.directory.calls)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "40.00", h.ledger.balance("acc-b"))
	assert.Len(t, h.journal.records, 2)
}

func TestLedgerOutageBeforeCommitIsRetriedThenPending(t *testing.T) {
	h := newHarness(t)
	h.ledger.failErr = errs.Upstream("account-service unavailable", errors.New("timeout"))

	_, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.Error(t, err)
	assert.Equal(t, errs.ReasonTransferPending, errs.ReasonOf(err))
	assert.Equal(t, 3, h.ledger.calls)
	assert.Equal(t, "100.00", h.ledger.balance("acc-a"))
	assert.Equal(t, StateMovingFunds, h.store.state("trf-1"))

	h.ledger.failErr = nil
	retry, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, retry.Status)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
}

func TestRecoverSettlesAbandonedTransfers(t *testing.T) {
	h := newHarness(t)
	h.ledger.lostReplies = 10
	_, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.Error(t, err)

	h.journal.down = true
	h.queue.down = true
	h.ledger.set(func(l *fakeLedger) { l.lostReplies = 0 })
	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-2", "bob@example.com", "10.00"))
	require.NoError(t, err)
	require.Equal(t, models.TransferPartial, outcome.Status)
	require.Equal(t, StateRecording, h.store.state("trf-2"))

	// A sweep only takes records idle for longer than the threshold.
	settled, err := h.coordinator.Recover(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, settled)

	h.journal.down = false
	h.queue.down = false
	settled, err = h.coordinator.Recover(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	assert.Equal(t, StateCompleted, h.store.state("trf-1"))
	assert.Equal(t, StateCompleted, h.store.state("trf-2"))
	assert.Equal(t, "50.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "50.00", h.ledger.balance("acc-b"))
	assert.Len(t, h.journal.records, 4)
}

func TestRecoverSkipsTransfersHeldByARequest(t *testing.T) {
	h := newHarness(t)
	h.ledger.lostReplies = 10
	_, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.Error(t, err)
	h.ledger.set(func(l *fakeLedger) { l.lostReplies = 0 })

	unlock, err := h.locker.Lock(context.Background(), LockKey("trf-1"))
	require.NoError(t, err)
	calls := h.ledger.calls

	settled, err := h.coordinator.Recover(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, settled)
	assert.Equal(t, calls, h.ledger.calls)
	assert.Equal(t, StateMovingFunds, h.store.state("trf-1"))

	unlock(context.Background())
	settled, err = h.coordinator.Recover(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestIllegalTransitionIsAnErrorNotAPanic(t *testing.T) {
	h := newHarness(t)
	record := &Record{TransferID: "trf-1", State: StateCompleted, FromAccountID: "acc-a", Amount: money.MustParse("1.00")}

	var err error
	assert.NotPanics(t, func() { err = h.coordinator.advance(context.Background(), record, StateResolving) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPLETED -> RESOLVING")
	assert.Equal(t, StateCompleted, record.State)
	assert.Empty(t, h.store.records)
}

func TestCrashAfterLedgerResumesWithoutSecondMove(t *testing.T) {
	h := newHarness(t)
	// The ledger applied the transfer but the process died before RECORDING was saved.
	_, err := h.ledger.AtomicTransfer(context.Background(), cqrs.TransferFundsCommand{
		TransferID: "trf-1", FromAccountID: "acc-a", ToAccountID: "acc-b", Amount: money.MustParse("40.00"),
	})
	require.NoError(t, err)
	h.store.records["trf-1"] = Record{
		TransferID: "trf-1", State: StateMovingFunds, FromAccountID: "acc-a",
		ToAccountEmail: "bob@example.com", ToAccountID: "acc-b", Amount: money.MustParse("40.00"),
	}

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, outcome.Status)
	assert.Equal(t, "60.00", h.ledger.balance("acc-a"))
	assert.Equal(t, "40.00", h.ledger.balance("acc-b"))
	assert.Len(t, h.journal.records, 2)
}

func TestReusedTransferIDWithDifferentParametersIsRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.NoError(t, err)

	outcome, err := h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "41.00"))
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, outcome.Status)
	assert.Equal(t, errs.ReasonInvalid, outcome.Reason)
	assert.Equal(t, StateCompleted, h.store.records["trf-1"].State)
	assert.Equal(t, 1, h.ledger.calls)
}

func TestConcurrentRunOfSameTransferIsInProgress(t *testing.T) {
	h := newHarness(t)
	unlock, err := h.locker.Lock(context.Background(), LockKey("trf-1"))
	require.NoError(t, err)
	defer unlock(context.Background())

	_, err = h.coordinator.Execute(context.Background(), intent("trf-1", "bob@example.com", "40.00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUpstream))
	assert.Equal(t, errs.ReasonTransferInProgress, errs.ReasonOf(err))
	assert.Zero(t, h.ledger.calls)
}

func TestTransitionTable(t *testing.T) {
	allowed := map[State][]State{
		StateStart:       {StateResolving},
		StateResolving:   {StateRejected, StateMovingFunds},
		StateMovingFunds: {StateRejected, StateRecording},
		StateRecording:   {StateCompleted, StatePartial},
	}
	all := []State{StateStart, StateResolving, StateMovingFunds, StateRecording, StateCompleted, StateRejected, StatePartial}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, StateResolving.CanRejectWith(errs.ReasonInsufficientFunds))
	assert.True(t, StateMovingFunds.CanRejectWith(errs.ReasonInsufficientFunds))
	for _, s := range []State{StateCompleted, StateRejected, StatePartial} {
		assert.True(t, s.Terminal())
	}
}
