package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ftledger/internal/token/metrics"
	"ftledger/internal/token/ports/mocks"
	"ftledger/internal/token/state"
)

type SweeperSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	source  *mocks.MockSnapshotSource
	store   *mocks.MockSnapshotStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockSnapshotSource(s.ctrl)
	s.store = mocks.NewMockSnapshotStore(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *SweeperSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SweeperSuite) newSweeper(opts ...Option) *Sweeper {
	opts = append([]Option{WithLogger(s.logger), WithMetrics(s.metrics)}, opts...)
	sw, err := New(s.source, opts...)
	s.Require().NoError(err)
	return sw
}

func (s *SweeperSuite) TestSweepOnlyWithoutStore() {
	s.source.EXPECT().Sweep(gomock.Any()).Return(3)

	s.NoError(s.newSweeper().RunOnce(context.Background()))
}

func (s *SweeperSuite) TestSavesOnlyWhenVersionMoves() {
	sw := s.newSweeper(WithStore(s.store, "memory"))
	ctx := context.Background()

	s.Run("first run saves", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0)
		s.source.EXPECT().Snapshot().Return(state.Snapshot{Version: 4})
		s.store.EXPECT().Save(gomock.Any(), state.Snapshot{Version: 4}).Return(nil)

		s.NoError(sw.RunOnce(ctx))
	})

	s.Run("unchanged version skips the save", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0)
		s.source.EXPECT().Version().Return(uint64(4))

		s.NoError(sw.RunOnce(ctx))
	})

	s.Run("new version saves again", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(2)
		s.source.EXPECT().Version().Return(uint64(5))
		s.source.EXPECT().Snapshot().Return(state.Snapshot{Version: 5})
		s.store.EXPECT().Save(gomock.Any(), state.Snapshot{Version: 5}).Return(nil)

		s.NoError(sw.RunOnce(ctx))
	})

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Snapshots.WithLabelValues("memory", "ok")))
}

func (s *SweeperSuite) TestRestoredVersionIsNotRewritten() {
	sw := s.newSweeper(WithStore(s.store, "redis"), WithSavedVersion(9))
	s.source.EXPECT().Sweep(gomock.Any()).Return(0)
	s.source.EXPECT().Version().Return(uint64(9))

	s.NoError(sw.RunOnce(context.Background()))
}

// Justification: a failed save must be retried on the next run, so the
// last saved version must not advance.
func (s *SweeperSuite) TestSaveFailureIsRetried() {
	sw := s.newSweeper(WithStore(s.store, "postgres"))
	ctx := context.Background()

	s.source.EXPECT().Sweep(gomock.Any()).Return(0).Times(2)
	s.source.EXPECT().Snapshot().Return(state.Snapshot{Version: 1}).Times(2)
	gomock.InOrder(
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")),
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)

	s.Error(sw.RunOnce(ctx))
	s.NoError(sw.RunOnce(ctx))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Snapshots.WithLabelValues("postgres", "error")))
}

// Justification: offsets of consumed actions may only be committed once a
// saved snapshot contains their effects.
func (s *SweeperSuite) TestOnSavedReportsDurableVersion() {
	var reported []uint64
	sw := s.newSweeper(
		WithStore(s.store, "redis"),
		WithOnSaved(func(_ context.Context, v uint64) { reported = append(reported, v) }),
	)
	ctx := context.Background()

	s.Run("failed save reports nothing", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0)
		s.source.EXPECT().Snapshot().Return(state.Snapshot{Version: 3})
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

		s.Error(sw.RunOnce(ctx))
		s.Empty(reported)
	})

	s.Run("successful save reports its version", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0)
		s.source.EXPECT().Snapshot().Return(state.Snapshot{Version: 3})
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(sw.RunOnce(ctx))
		s.Equal([]uint64{3}, reported)
	})

	s.Run("unchanged state reports the saved version again", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0)
		s.source.EXPECT().Version().Return(uint64(3))

		s.Require().NoError(sw.RunOnce(ctx))
		s.Equal([]uint64{3, 3}, reported)
	})
}

func (s *SweeperSuite) TestScheduleAndStop() {
	sw := s.newSweeper()

	s.Run("invalid spec", func() {
		s.Error(sw.Start("not a schedule"))
	})

	s.Run("stop flushes a final run", func() {
		s.source.EXPECT().Sweep(gomock.Any()).Return(0).MinTimes(1)
		s.Require().NoError(sw.Start("@every 1h"))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.NoError(sw.Stop(ctx))
	})
}

func (s *SweeperSuite) TestNewRequiresSource() {
	_, err := New(nil)
	s.Error(err)
}
