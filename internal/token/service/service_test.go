package service

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"ftledger/internal/token/metrics"
	"ftledger/internal/token/models"
	"ftledger/internal/token/state"
	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/requestcontext"
)

const storagePeriod = time.Hour

var (
	root  = id.MustParseActorID(strings.Repeat("01", 32))
	alice = id.MustParseActorID(strings.Repeat("a1", 32))
	bob   = id.MustParseActorID(strings.Repeat("b2", 32))
	carol = id.MustParseActorID(strings.Repeat("c3", 32))
	epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func amt(v uint64) id.Amount { return id.NewAmount(v) }

func txID(v uint64) *id.TxID {
	t := id.TxID(v)
	return &t
}

type DispatcherSuite struct {
	suite.Suite
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	now        time.Time
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.now = epoch
	s.ctx = context.Background()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.dispatcher = s.newDispatcher(10_000, 0)
}

func (s *DispatcherSuite) newDispatcher(maxSupply uint64, initial uint64) *Dispatcher {
	st, err := state.New(models.InitConfig{
		Name:          "Test Token",
		Symbol:        "TT",
		Decimals:      2,
		Description:   "a token for tests",
		InitialSupply: amt(initial),
		TotalSupply:   amt(maxSupply),
		Admin:         root,
		Config:        models.Config{TxStoragePeriod: storagePeriod},
	})
	s.Require().NoError(err)

	d, err := New(st,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	return d
}

func (s *DispatcherSuite) handle(caller id.ActorID, action models.Action) (models.Reply, error) {
	return s.dispatcher.Handle(s.ctx, caller, action)
}

func (s *DispatcherSuite) balance(account id.ActorID) id.Amount {
	reply, err := s.dispatcher.Query(s.ctx, models.BalanceOfQuery{Account: account})
	s.Require().NoError(err)
	return reply.(models.BalanceOfReply).Amount
}

func (s *DispatcherSuite) supply() id.Amount {
	reply, err := s.dispatcher.Query(s.ctx, models.CurrentSupplyQuery{})
	s.Require().NoError(err)
	return reply.(models.CurrentSupplyReply).Amount
}

func (s *DispatcherSuite) allowance(owner, spender id.ActorID) id.Amount {
	reply, err := s.dispatcher.Query(s.ctx, models.AllowanceOfAccountQuery{Account: owner, ApprovedAccount: spender})
	s.Require().NoError(err)
	return reply.(models.AllowanceReply).Amount
}

func (s *DispatcherSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *DispatcherSuite) TestNewRequiresState() {
	_, err := New(nil)
	s.Error(err)
}

// =============================================================================
// Worked example
// =============================================================================

// Justification: end-to-end walk through mint, approve, delegated transfer,
// replay and post-expiry resubmission as a client would drive it.
func (s *DispatcherSuite) TestDelegatedTransferScenario() {
	reply, err := s.handle(root, models.Mint{Amount: amt(1000), To: alice})
	s.Require().NoError(err)
	s.Equal(models.Balance{Amount: amt(1000)}, reply)

	reply, err = s.handle(alice, models.Approve{To: bob, Amount: amt(200)})
	s.Require().NoError(err)
	s.Equal(models.Approved{From: alice, To: bob, Amount: amt(200)}, reply)

	transfer := models.Transfer{TxID: txID(7), From: alice, To: carol, Amount: amt(150)}
	reply, err = s.handle(bob, transfer)
	s.Require().NoError(err)
	s.Equal(models.Transferred{From: alice, To: carol, Amount: amt(150)}, reply)
	s.Equal(amt(850), s.balance(alice))
	s.Equal(amt(150), s.balance(carol))
	s.Equal(amt(50), s.allowance(alice, bob))

	_, err = s.handle(bob, transfer)
	s.requireCode(err, dErrors.CodeTxAlreadyExists)
	s.Equal(amt(850), s.balance(alice))
	s.Equal(amt(50), s.allowance(alice, bob))

	s.now = epoch.Add(storagePeriod)
	_, err = s.handle(bob, transfer)
	s.requireCode(err, dErrors.CodeNotAllowedToTransfer)
	s.Equal(amt(850), s.balance(alice))
}

// =============================================================================
// Mint / Burn
// =============================================================================

func (s *DispatcherSuite) TestMint() {
	s.Run("non-admin is rejected", func() {
		_, err := s.handle(alice, models.Mint{Amount: amt(1), To: alice})
		s.requireCode(err, dErrors.CodeNotAdmin)
	})

	s.Run("zero recipient is rejected", func() {
		_, err := s.handle(root, models.Mint{Amount: amt(1), To: id.ZeroActor})
		s.requireCode(err, dErrors.CodeZeroAddress)
	})

	s.Run("admin check precedes zero address", func() {
		_, err := s.handle(alice, models.Mint{Amount: amt(1), To: id.ZeroActor})
		s.requireCode(err, dErrors.CodeNotAdmin)
	})

	s.Run("ceiling is enforced and reachable", func() {
		_, err := s.handle(root, models.Mint{Amount: amt(10_000), To: bob})
		s.Require().NoError(err)
		_, err = s.handle(root, models.Mint{Amount: amt(1), To: bob})
		s.requireCode(err, dErrors.CodeMaxSupplyReached)
		s.Equal(amt(10_000), s.supply())
	})
}

func (s *DispatcherSuite) TestBurn() {
	s.dispatcher = s.newDispatcher(10_000, 500)

	s.Run("burns from the admin balance and replies with supply", func() {
		reply, err := s.handle(root, models.Burn{Amount: amt(200)})
		s.Require().NoError(err)
		s.Equal(models.Balance{Amount: amt(300)}, reply)
		s.Equal(amt(300), s.balance(root))
	})

	s.Run("more than the admin holds", func() {
		_, err := s.handle(root, models.Burn{Amount: amt(301)})
		s.requireCode(err, dErrors.CodeNotEnoughBalance)
	})

	s.Run("non-admin", func() {
		_, err := s.handle(alice, models.Burn{Amount: amt(1)})
		s.requireCode(err, dErrors.CodeNotAdmin)
	})
}

// =============================================================================
// Transfer / Approve
// =============================================================================

func (s *DispatcherSuite) TestTransfer() {
	_, err := s.handle(root, models.Mint{Amount: amt(100), To: alice})
	s.Require().NoError(err)

	s.Run("owner moves own funds", func() {
		_, err := s.handle(alice, models.Transfer{From: alice, To: bob, Amount: amt(40)})
		s.Require().NoError(err)
		s.Equal(amt(60), s.balance(alice))
	})

	s.Run("zero caller", func() {
		_, err := s.handle(id.ZeroActor, models.Transfer{From: alice, To: bob, Amount: amt(1)})
		s.requireCode(err, dErrors.CodeZeroAddress)
	})

	s.Run("zero recipient", func() {
		_, err := s.handle(alice, models.Transfer{From: alice, To: id.ZeroActor, Amount: amt(1)})
		s.requireCode(err, dErrors.CodeZeroAddress)
	})

	s.Run("stranger without allowance", func() {
		_, err := s.handle(carol, models.Transfer{From: alice, To: carol, Amount: amt(1)})
		s.requireCode(err, dErrors.CodeNotAllowedToTransfer)
	})

	s.Run("insufficient balance consumes no allowance and writes no record", func() {
		_, err := s.handle(alice, models.Approve{To: carol, Amount: amt(500)})
		s.Require().NoError(err)

		_, err = s.handle(carol, models.Transfer{TxID: txID(1), From: alice, To: carol, Amount: amt(61)})
		s.requireCode(err, dErrors.CodeNotEnoughBalance)
		s.Equal(amt(500), s.allowance(alice, carol))

		reply, err := s.dispatcher.Query(s.ctx, models.TxIDsForAccountQuery{Account: carol})
		s.Require().NoError(err)
		s.Empty(reply.(models.TxIDsForAccountReply).TxIDs)
	})

	s.Run("self transfer is allowed", func() {
		_, err := s.handle(alice, models.Transfer{From: alice, To: alice, Amount: amt(60)})
		s.Require().NoError(err)
		s.Equal(amt(60), s.balance(alice))
	})
}

func (s *DispatcherSuite) TestReplayGuard() {
	_, err := s.handle(root, models.Mint{Amount: amt(100), To: alice})
	s.Require().NoError(err)

	s.Run("replay is rejected before any other check", func() {
		_, err := s.handle(alice, models.Approve{TxID: txID(9), To: bob, Amount: amt(5)})
		s.Require().NoError(err)

		_, err = s.handle(alice, models.Approve{TxID: txID(9), To: id.ZeroActor, Amount: amt(5)})
		s.requireCode(err, dErrors.CodeTxAlreadyExists)
	})

	s.Run("ids are scoped per caller", func() {
		_, err := s.handle(bob, models.Approve{TxID: txID(9), To: alice, Amount: amt(5)})
		s.NoError(err)
	})

	s.Run("validity is reported until expiry", func() {
		reply, err := s.dispatcher.Query(s.ctx, models.TxValidityTimeQuery{Account: alice, TxID: 9})
		s.Require().NoError(err)
		until := reply.(models.TxValidityTimeReply).ValidUntil
		s.Require().NotNil(until)
		s.True(until.Equal(epoch.Add(storagePeriod)))

		s.now = epoch.Add(storagePeriod)
		reply, err = s.dispatcher.Query(s.ctx, models.TxValidityTimeQuery{Account: alice, TxID: 9})
		s.Require().NoError(err)
		s.Nil(reply.(models.TxValidityTimeReply).ValidUntil)
	})

	s.Run("after expiry the same id is accepted", func() {
		_, err := s.handle(alice, models.Transfer{TxID: txID(9), From: alice, To: bob, Amount: amt(1)})
		s.NoError(err)
	})

	s.Run("request time in context wins over the clock", func() {
		ctx := requestcontext.WithTime(s.ctx, epoch.Add(10*storagePeriod))
		_, err := s.dispatcher.Handle(ctx, alice, models.Approve{TxID: txID(9), To: bob, Amount: amt(1)})
		s.NoError(err)
	})
}

// =============================================================================
// TransferToUsers
// =============================================================================

func (s *DispatcherSuite) TestTransferToUsers() {
	s.dispatcher = s.newDispatcher(10_000, 100)

	s.Run("pays each recipient the amount", func() {
		reply, err := s.handle(root, models.TransferToUsers{Amount: amt(10), ToUsers: []id.ActorID{alice, bob}})
		s.Require().NoError(err)
		s.Equal(models.TransferredToUsers{From: root, ToUsers: []id.ActorID{alice, bob}, Amount: amt(10)}, reply)
		s.Equal(amt(80), s.balance(root))
		s.Equal(amt(10), s.balance(bob))
	})

	s.Run("zero recipient rejects the batch", func() {
		_, err := s.handle(root, models.TransferToUsers{Amount: amt(1), ToUsers: []id.ActorID{carol, id.ZeroActor}})
		s.requireCode(err, dErrors.CodeZeroAddress)
		s.True(s.balance(carol).IsZero())
	})

	s.Run("overflowing product is a supply error", func() {
		_, err := s.handle(root, models.TransferToUsers{Amount: id.MaxAmount(), ToUsers: []id.ActorID{alice, bob}})
		s.requireCode(err, dErrors.CodeSupply)
	})

	s.Run("insufficient admin balance", func() {
		_, err := s.handle(root, models.TransferToUsers{Amount: amt(41), ToUsers: []id.ActorID{alice, bob}})
		s.requireCode(err, dErrors.CodeNotEnoughBalance)
		s.Equal(amt(80), s.balance(root))
	})

	s.Run("non-admin", func() {
		_, err := s.handle(alice, models.TransferToUsers{Amount: amt(1), ToUsers: []id.ActorID{bob}})
		s.requireCode(err, dErrors.CodeNotAdmin)
	})
}

// =============================================================================
// Admins
// =============================================================================

func (s *DispatcherSuite) TestAdminManagement() {
	s.Run("add and list", func() {
		reply, err := s.handle(root, models.AddAdmin{AdminID: alice})
		s.Require().NoError(err)
		s.Equal(models.AdminAdded{AdminID: alice}, reply)

		q, err := s.dispatcher.Query(s.ctx, models.AdminsQuery{})
		s.Require().NoError(err)
		s.Equal([]id.ActorID{root, alice}, q.(models.AdminsReply).Admins)
	})

	s.Run("duplicate", func() {
		_, err := s.handle(alice, models.AddAdmin{AdminID: root})
		s.requireCode(err, dErrors.CodeAdminAlreadyExists)
	})

	s.Run("self removal", func() {
		_, err := s.handle(root, models.DeleteAdmin{AdminID: root})
		s.requireCode(err, dErrors.CodeCantDeleteYourself)
	})

	s.Run("removing another admin down to one member", func() {
		reply, err := s.handle(alice, models.DeleteAdmin{AdminID: root})
		s.Require().NoError(err)
		s.Equal(models.AdminRemoved{AdminID: root}, reply)

		_, err = s.handle(root, models.Mint{Amount: amt(1), To: root})
		s.requireCode(err, dErrors.CodeNotAdmin)
	})
}

// =============================================================================
// Queries, sweep, version
// =============================================================================

func (s *DispatcherSuite) TestQueries() {
	reply, err := s.dispatcher.Query(s.ctx, models.TotalSupplyQuery{})
	s.Require().NoError(err)
	s.Equal(amt(10_000), reply.(models.TotalSupplyReply).Amount)

	reply, err = s.dispatcher.Query(s.ctx, models.SymbolQuery{})
	s.Require().NoError(err)
	s.Equal("TT", reply.(models.SymbolReply).Symbol)

	reply, err = s.dispatcher.Query(s.ctx, models.ConfigQuery{})
	s.Require().NoError(err)
	s.Equal(storagePeriod, reply.(models.ConfigReply).Config.TxStoragePeriod)

	_, err = s.dispatcher.Query(s.ctx, nil)
	s.requireCode(err, dErrors.CodeBadRequest)
}

func (s *DispatcherSuite) TestSweepAndVersion() {
	s.Equal(uint64(0), s.dispatcher.Version())

	_, err := s.handle(alice, models.Approve{TxID: txID(1), To: bob, Amount: amt(1)})
	s.Require().NoError(err)
	_, err = s.handle(alice, models.BalanceOf{Account: alice})
	s.Require().NoError(err)
	_, err = s.handle(alice, models.Approve{TxID: txID(1), To: bob, Amount: amt(1)})
	s.Require().Error(err)
	s.Equal(uint64(1), s.dispatcher.Version(), "only accepted mutations bump the version")

	s.Equal(0, s.dispatcher.Sweep(s.ctx))
	s.Equal(uint64(1), s.dispatcher.Version())

	s.now = epoch.Add(storagePeriod)
	s.Equal(1, s.dispatcher.Sweep(s.ctx))
	s.Equal(uint64(2), s.dispatcher.Version())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SweptRecords))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.JournalRecords))

	snap := s.dispatcher.Snapshot()
	s.Equal(uint64(2), snap.Version)
	s.Empty(snap.Journal)
}

func (s *DispatcherSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.dispatcher.Handle(ctx, root, models.Mint{Amount: amt(1), To: root})
	s.requireCode(err, dErrors.CodeTimeout)
	s.True(s.supply().IsZero())
}

func (s *DispatcherSuite) TestMetricsRecordOutcomes() {
	_, _ = s.handle(root, models.Mint{Amount: amt(1), To: alice})
	_, _ = s.handle(alice, models.Mint{Amount: amt(1), To: alice})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Actions.WithLabelValues("mint", "ok")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Actions.WithLabelValues("mint", "NotAdmin")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IssuedSupply))
}

// =============================================================================
// Invariants under random load
// =============================================================================

// Justification: supply conservation, the ceiling and allowance monotonicity
// must survive any interleaving of accepted and rejected actions.
func (s *DispatcherSuite) TestInvariantsUnderRandomActions() {
	s.dispatcher = s.newDispatcher(5_000, 1_000)
	accounts := []id.ActorID{root, alice, bob, carol, id.ZeroActor}
	rng := rand.New(rand.NewPCG(42, 1))
	pick := func() id.ActorID { return accounts[rng.IntN(len(accounts))] }

	for i := range 3_000 {
		caller, from, to := pick(), pick(), pick()
		v := amt(rng.Uint64N(300))
		var tx *id.TxID
		if rng.IntN(2) == 0 {
			tx = txID(rng.Uint64N(20))
		}
		s.now = epoch.Add(time.Duration(i) * time.Minute)

		before := s.allowance(from, caller)
		var action models.Action
		switch rng.IntN(6) {
		case 0:
			action = models.Mint{Amount: v, To: to}
		case 1:
			action = models.Burn{Amount: v}
		case 2:
			action = models.Transfer{TxID: tx, From: from, To: to, Amount: v}
		case 3:
			action = models.Approve{TxID: tx, To: to, Amount: v}
		case 4:
			action = models.TransferToUsers{Amount: v, ToUsers: []id.ActorID{from, to}}
		case 5:
			action = models.AddAdmin{AdminID: to}
		}
		_, err := s.handle(caller, action)

		snap := s.dispatcher.Snapshot()
		var sum id.Amount
		for _, e := range snap.Balances {
			var ok bool
			sum, ok = sum.Add(e.Balance)
			s.Require().True(ok)
		}
		s.Require().Equal(snap.Supply, sum, "supply conservation after %T", action)
		s.Require().False(snap.Supply.Gt(snap.MaxSupply))
		s.Require().NotEmpty(snap.Admins)

		if tr, ok := action.(models.Transfer); ok && caller != from {
			after := s.allowance(from, caller)
			if err == nil {
				expected, ok := before.Sub(tr.Amount)
				s.Require().True(ok)
				s.Require().Equal(expected, after)
			} else {
				s.Require().Equal(before, after)
			}
		}
	}
}
