package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"ftledger/pkg/platform/sentinel"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.store = NewPostgresStore(db, WithRetain(3))
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

func (s *PostgresStoreSuite) TestSaveInsertsAndPrunesInOneTx() {
	snap := sampleSnapshot(s.T(), 7)

	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO ledger_snapshots").
		WithArgs(int64(7), snap.TakenAt, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("DELETE FROM ledger_snapshots").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	s.Require().NoError(s.store.Save(s.ctx, snap))
}

func (s *PostgresStoreSuite) TestSaveRollsBackOnFailure() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO ledger_snapshots").WillReturnError(errors.New("disk full"))
	s.mock.ExpectRollback()

	err := s.store.Save(s.ctx, sampleSnapshot(s.T(), 1))
	s.ErrorContains(err, "insert snapshot")
}

func (s *PostgresStoreSuite) TestLoad() {
	s.Run("newest document is decoded", func() {
		snap := sampleSnapshot(s.T(), 9)
		doc, err := json.Marshal(snap)
		s.Require().NoError(err)

		s.mock.ExpectQuery("SELECT document FROM ledger_snapshots").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))

		loaded, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(9), loaded.Version)
		s.Equal(snap.Balances, loaded.Balances)
	})

	s.Run("empty table is not found", func() {
		s.mock.ExpectQuery("SELECT document FROM ledger_snapshots").
			WillReturnRows(sqlmock.NewRows([]string{"document"}))

		_, err := s.store.Load(s.ctx)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("corrupt document is invalid state", func() {
		s.mock.ExpectQuery("SELECT document FROM ledger_snapshots").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte("{")))

		_, err := s.store.Load(s.ctx)
		s.True(errors.Is(err, sentinel.ErrInvalidState))
	})
}

func (s *PostgresStoreSuite) TestVersions() {
	s.mock.ExpectQuery("SELECT version FROM ledger_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(9)).AddRow(int64(8)))

	versions, err := s.store.Versions(s.ctx)
	s.Require().NoError(err)
	s.Equal([]uint64{9, 8}, versions)
}

func (s *PostgresStoreSuite) TestEnsureSchema() {
	s.mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.NoError(s.store.EnsureSchema(s.ctx))
}
