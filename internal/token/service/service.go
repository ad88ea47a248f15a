// Package service hosts the Dispatcher, the single entry point that applies
// ledger actions and answers queries.
//
// Every action is validated completely before its first mutation, so a
// rejected action leaves balances, allowances, admins and the journal exactly
// as they were. Actions and sweeps hold the write lock for their whole
// duration; queries share the read lock and observe state between actions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ftledger/internal/token/metrics"
	"ftledger/internal/token/models"
	"ftledger/internal/token/state"
	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/requestcontext"
)

const tracerName = "ftledger/internal/token/service"

// Dispatcher owns the ledger state.
type Dispatcher struct {
	mu      sync.RWMutex
	state   *state.State
	version uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithClock overrides the time source used when the context carries no
// request time.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithVersion seeds the revision counter, used when resuming from a snapshot.
func WithVersion(v uint64) Option {
	return func(d *Dispatcher) {
		d.version = v
	}
}

// New constructs a Dispatcher around st.
func New(st *state.State, opts ...Option) (*Dispatcher, error) {
	if st == nil {
		return nil, fmt.Errorf("ledger state is required")
	}
	d := &Dispatcher{
		state:  st,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.publishGauges()
	return d, nil
}

// Handle applies one action on behalf of caller and returns its reply or a
// coded error. A context that is already done is rejected with Timeout
// before any state is touched.
func (d *Dispatcher) Handle(ctx context.Context, caller id.ActorID, action models.Action) (models.Reply, error) {
	if action == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "action is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "action not dispatched")
	}

	ctx, span := d.tracer.Start(ctx, "ledger.handle", trace.WithAttributes(
		attribute.String("ledger.action", string(action.Kind())),
		attribute.String("ledger.caller", caller.String()),
	))
	defer span.End()

	start := time.Now()
	now := d.now(ctx)

	var (
		reply models.Reply
		err   error
	)
	if models.Mutates(action) {
		d.mu.Lock()
		reply, err = d.apply(caller, action, now)
		if err == nil {
			d.version++
			d.publishGauges()
		}
		d.mu.Unlock()
	} else {
		d.mu.RLock()
		reply, err = d.apply(caller, action, now)
		d.mu.RUnlock()
	}

	d.observe(ctx, span, caller, action, err, time.Since(start))
	return reply, err
}

func (d *Dispatcher) apply(caller id.ActorID, action models.Action, now time.Time) (models.Reply, error) {
	switch a := action.(type) {
	case models.Mint:
		return d.mint(caller, a)
	case models.Burn:
		return d.burn(caller, a)
	case models.Transfer:
		return d.transfer(caller, a, now)
	case models.Approve:
		return d.approve(caller, a, now)
	case models.TransferToUsers:
		return d.transferToUsers(caller, a)
	case models.BalanceOf:
		return models.Balance{Amount: d.state.Ledger.BalanceOf(a.Account)}, nil
	case models.AddAdmin:
		if err := d.state.Admins.Add(caller, a.AdminID); err != nil {
			return nil, err
		}
		return models.AdminAdded{AdminID: a.AdminID}, nil
	case models.DeleteAdmin:
		if err := d.state.Admins.Remove(caller, a.AdminID); err != nil {
			return nil, err
		}
		return models.AdminRemoved{AdminID: a.AdminID}, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported action %T", action))
	}
}

func (d *Dispatcher) mint(caller id.ActorID, a models.Mint) (models.Reply, error) {
	if err := d.state.Admins.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if a.To.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddress, "cannot mint to the zero address")
	}
	balance, err := d.state.Ledger.Mint(a.To, a.Amount)
	if err != nil {
		return nil, err
	}
	return models.Balance{Amount: balance}, nil
}

func (d *Dispatcher) burn(caller id.ActorID, a models.Burn) (models.Reply, error) {
	if err := d.state.Admins.RequireAdmin(caller); err != nil {
		return nil, err
	}
	supply, err := d.state.Ledger.Burn(caller, a.Amount)
	if err != nil {
		return nil, err
	}
	return models.Balance{Amount: supply}, nil
}

func (d *Dispatcher) transfer(caller id.ActorID, a models.Transfer, now time.Time) (models.Reply, error) {
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddress, "caller cannot be the zero address")
	}
	if a.TxID != nil {
		if err := d.state.Journal.Check(caller, *a.TxID, now); err != nil {
			return nil, err
		}
	}
	if a.From.IsZero() || a.To.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddress, "sender and recipient must not be the zero address")
	}
	delegated := caller != a.From
	if delegated {
		if err := d.state.Allowances.CanConsume(a.From, caller, a.Amount); err != nil {
			return nil, err
		}
	}
	if err := d.state.Ledger.Transfer(a.From, a.To, a.Amount); err != nil {
		return nil, err
	}

	if delegated {
		if err := d.state.Allowances.Consume(a.From, caller, a.Amount); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allowance changed during transfer")
		}
	}
	if a.TxID != nil {
		d.state.Journal.Record(caller, *a.TxID, now)
	}
	return models.Transferred{From: a.From, To: a.To, Amount: a.Amount}, nil
}

func (d *Dispatcher) approve(caller id.ActorID, a models.Approve, now time.Time) (models.Reply, error) {
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddress, "caller cannot be the zero address")
	}
	if a.TxID != nil {
		if err := d.state.Journal.Check(caller, *a.TxID, now); err != nil {
			return nil, err
		}
	}
	if a.To.IsZero() {
		return nil, dErrors.New(dErrors.CodeZeroAddress, "cannot approve the zero address")
	}

	d.state.Allowances.Approve(caller, a.To, a.Amount)
	if a.TxID != nil {
		d.state.Journal.Record(caller, *a.TxID, now)
	}
	return models.Approved{From: caller, To: a.To, Amount: a.Amount}, nil
}

func (d *Dispatcher) transferToUsers(caller id.ActorID, a models.TransferToUsers) (models.Reply, error) {
	if err := d.state.Admins.RequireAdmin(caller); err != nil {
		return nil, err
	}
	for _, to := range a.ToUsers {
		if to.IsZero() {
			return nil, dErrors.New(dErrors.CodeZeroAddress, "recipients must not include the zero address")
		}
	}
	if _, err := d.state.Ledger.Distribute(caller, a.ToUsers, a.Amount); err != nil {
		return nil, err
	}
	return models.TransferredToUsers{From: caller, ToUsers: a.ToUsers, Amount: a.Amount}, nil
}

// Sweep removes expired journal records and returns how many went.
func (d *Dispatcher) Sweep(ctx context.Context) int {
	_, span := d.tracer.Start(ctx, "ledger.sweep")
	defer span.End()

	now := d.now(ctx)
	d.mu.Lock()
	removed := d.state.Journal.Sweep(now)
	if removed > 0 {
		d.version++
	}
	d.publishGauges()
	d.mu.Unlock()

	span.SetAttributes(attribute.Int("ledger.swept", removed))
	d.metrics.AddSwept(removed)
	if removed > 0 {
		d.logger.InfoContext(ctx, "journal swept", "event", "journal_swept", "removed", removed)
	}
	return removed
}

// Snapshot copies the current state together with its revision.
func (d *Dispatcher) Snapshot() state.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Snapshot(d.version, d.clock())
}

// Version is the state revision. It grows with every accepted mutating
// action and every sweep that removed records.
func (d *Dispatcher) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

func (d *Dispatcher) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.Time(ctx); ok {
		return t
	}
	return d.clock()
}

// publishGauges must be called with the lock held.
func (d *Dispatcher) publishGauges() {
	d.metrics.SetIssuedSupply(d.state.Ledger.TotalSupply().Float64())
	d.metrics.SetJournalRecords(d.state.Journal.Len())
}

func (d *Dispatcher) observe(ctx context.Context, span trace.Span, caller id.ActorID, action models.Action, err error, elapsed time.Duration) {
	kind := string(action.Kind())
	attrs := []any{
		"action", kind,
		"caller", caller.String(),
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}

	if err == nil {
		d.metrics.ObserveAction(kind, "ok", elapsed)
		d.logger.InfoContext(ctx, "ledger action applied", append([]any{"event", "action_applied"}, attrs...)...)
		return
	}

	code := dErrors.CodeOf(err)
	d.metrics.ObserveAction(kind, string(code), elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	span.SetAttributes(attribute.String("ledger.error_code", string(code)))

	attrs = append(attrs, "code", string(code), "error", err.Error())
	if code.IsDomain() || code == dErrors.CodeBadRequest {
		d.logger.WarnContext(ctx, "ledger action rejected", append([]any{"event", "action_rejected"}, attrs...)...)
		return
	}
	d.logger.ErrorContext(ctx, "ledger action failed", append([]any{"event", "action_failed"}, attrs...)...)
}
