// Package state aggregates everything the ledger owns: token metadata, the
// runtime config, balances, allowances, administrators and the replay
// journal. It is built once from the init payload or a snapshot and is then
// owned by the dispatcher.
package state

import (
	"fmt"
	"time"

	"ftledger/internal/token/admin"
	"ftledger/internal/token/allowance"
	"ftledger/internal/token/journal"
	"ftledger/internal/token/ledger"
	"ftledger/internal/token/models"
	id "ftledger/pkg/domain"
	"ftledger/pkg/platform/sentinel"
)

type State struct {
	Metadata   models.Metadata
	Config     models.Config
	Ledger     *ledger.Ledger
	Allowances *allowance.Table
	Admins     *admin.Registry
	Journal    *journal.Journal

	capacity int
}

// New validates the init payload and builds a fresh state in which the
// admin holds the whole initial supply.
func New(cfg models.InitConfig) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	admins, err := admin.New(cfg.Admin)
	if err != nil {
		return nil, err
	}
	j, err := journal.New(cfg.Config.TxStoragePeriod, cfg.Capacity())
	if err != nil {
		return nil, err
	}
	l := ledger.New(cfg.TotalSupply)
	if !cfg.InitialSupply.IsZero() {
		if _, err := l.Mint(cfg.Admin, cfg.InitialSupply); err != nil {
			return nil, err
		}
	}
	return &State{
		Metadata:   cfg.Metadata(),
		Config:     cfg.Config,
		Ledger:     l,
		Allowances: allowance.New(),
		Admins:     admins,
		Journal:    j,
		capacity:   cfg.Capacity(),
	}, nil
}

// Snapshot is the persisted form of a State.
type Snapshot struct {
	Version    uint64            `json:"version"`
	TakenAt    time.Time         `json:"taken_at"`
	Metadata   models.Metadata   `json:"metadata"`
	Config     models.Config     `json:"config"`
	MaxSupply  id.Amount         `json:"max_supply"`
	Supply     id.Amount         `json:"supply"`
	Capacity   int               `json:"capacity"`
	Balances   []ledger.Entry    `json:"balances"`
	Allowances []allowance.Entry `json:"allowances"`
	Admins     []id.ActorID      `json:"admins"`
	Journal    []journal.Record  `json:"journal"`
}

// Snapshot copies the state. version identifies the state revision it was
// taken at.
func (s *State) Snapshot(version uint64, now time.Time) Snapshot {
	return Snapshot{
		Version:    version,
		TakenAt:    now,
		Metadata:   s.Metadata,
		Config:     s.Config,
		MaxSupply:  s.Ledger.MaxSupply(),
		Supply:     s.Ledger.TotalSupply(),
		Capacity:   s.capacity,
		Balances:   s.Ledger.Entries(),
		Allowances: s.Allowances.Entries(),
		Admins:     s.Admins.List(),
		Journal:    s.Journal.Records(),
	}
}

// Restore rebuilds a State from a snapshot. Any broken invariant is
// reported as sentinel.ErrInvalidState.
func Restore(snap Snapshot) (*State, error) {
	l, err := ledger.Restore(snap.MaxSupply, snap.Supply, snap.Balances)
	if err != nil {
		return nil, invalid("balances", err)
	}
	allowances, err := allowance.Restore(snap.Allowances)
	if err != nil {
		return nil, invalid("allowances", err)
	}
	if len(snap.Admins) == 0 {
		return nil, invalid("admins", fmt.Errorf("snapshot has no admins"))
	}
	admins, err := admin.Restore(snap.Admins)
	if err != nil {
		return nil, invalid("admins", err)
	}
	j, err := journal.Restore(snap.Config.TxStoragePeriod, snap.Capacity, snap.Journal)
	if err != nil {
		return nil, invalid("journal", err)
	}
	return &State{
		Metadata:   snap.Metadata,
		Config:     snap.Config,
		Ledger:     l,
		Allowances: allowances,
		Admins:     admins,
		Journal:    j,
		capacity:   snap.Capacity,
	}, nil
}

func invalid(part string, err error) error {
	return fmt.Errorf("restore %s: %w: %w", part, sentinel.ErrInvalidState, err)
}
