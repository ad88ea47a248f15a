// Package journal remembers which transaction ids each account has
// submitted recently so that a resubmitted id is rejected until its record
// expires.
//
// A record is live while now < ValidUntil. Expired records are invisible to
// every lookup, are overwritten on resubmission and are physically removed by
// Sweep, which also runs on insert once the journal reaches its capacity hint.
package journal

import (
	"bytes"
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/platform/sentinel"
)

// Record is one submitted transaction id.
type Record struct {
	Account    id.ActorID `json:"account"`
	TxID       id.TxID    `json:"tx_id"`
	ValidUntil time.Time  `json:"valid_until"`
}

// Journal is not safe for concurrent use; the dispatcher serializes access.
type Journal struct {
	period   time.Duration
	capacity int
	accounts map[id.ActorID]map[id.TxID]time.Time
	size     int
}

// New returns an empty journal that blocks replays for period. capacity is
// a sizing hint; zero disables the capacity-triggered sweep.
func New(period time.Duration, capacity int) (*Journal, error) {
	if period < 0 {
		return nil, fmt.Errorf("tx storage period must not be negative: %w", sentinel.ErrInvalidState)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("capacity must not be negative: %w", sentinel.ErrInvalidState)
	}
	return &Journal{
		period:   period,
		capacity: capacity,
		accounts: make(map[id.ActorID]map[id.TxID]time.Time, capacity),
	}, nil
}

// Restore rebuilds a journal from persisted records.
func Restore(period time.Duration, capacity int, records []Record) (*Journal, error) {
	j, err := New(period, capacity)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if _, dup := j.lookup(r.Account, r.TxID); dup {
			return nil, fmt.Errorf("duplicate journal record %s/%s", r.Account, r.TxID)
		}
		j.put(r)
	}
	return j, nil
}

// Period returns how long a record blocks replays.
func (j *Journal) Period() time.Duration {
	return j.period
}

// Check fails with TxAlreadyExists when a live record exists. It does not
// mutate the journal.
func (j *Journal) Check(account id.ActorID, txID id.TxID, now time.Time) error {
	if until, ok := j.lookup(account, txID); ok && now.Before(until) {
		return dErrors.New(dErrors.CodeTxAlreadyExists,
			fmt.Sprintf("tx %s of %s is already recorded until %s", txID, account, until.UTC().Format(time.RFC3339)))
	}
	return nil
}

// Record stores (account, txID) with ValidUntil = now + period and returns
// the stored record. An expired record for the same id is overwritten.
// Callers are expected to have passed Check first.
func (j *Journal) Record(account id.ActorID, txID id.TxID, now time.Time) Record {
	if j.capacity > 0 && j.size >= j.capacity {
		j.Sweep(now)
	}
	r := Record{Account: account, TxID: txID, ValidUntil: now.Add(j.period)}
	j.put(r)
	return r
}

// CheckAndRecord runs Check and, when it passes, Record.
func (j *Journal) CheckAndRecord(account id.ActorID, txID id.TxID, now time.Time) (Record, error) {
	if err := j.Check(account, txID, now); err != nil {
		return Record{}, err
	}
	return j.Record(account, txID, now), nil
}

// ValidityOf returns the expiry of a live record.
func (j *Journal) ValidityOf(account id.ActorID, txID id.TxID, now time.Time) (time.Time, bool) {
	until, ok := j.lookup(account, txID)
	if !ok || !now.Before(until) {
		return time.Time{}, false
	}
	return until, true
}

// IDsFor returns the live tx ids of account in ascending order.
func (j *Journal) IDsFor(account id.ActorID, now time.Time) []id.TxID {
	ids := make([]id.TxID, 0, len(j.accounts[account]))
	for txID, until := range j.accounts[account] {
		if now.Before(until) {
			ids = append(ids, txID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Sweep removes every record with ValidUntil <= now and returns how many
// were removed.
func (j *Journal) Sweep(now time.Time) int {
	removed := 0
	for account, txs := range j.accounts {
		maps.DeleteFunc(txs, func(_ id.TxID, until time.Time) bool {
			if now.Before(until) {
				return false
			}
			removed++
			return true
		})
		if len(txs) == 0 {
			delete(j.accounts, account)
		}
	}
	j.size -= removed
	return removed
}

// Len counts stored records, including expired ones not yet swept.
func (j *Journal) Len() int {
	return j.size
}

// Records returns every stored record ordered by account then tx id.
func (j *Journal) Records() []Record {
	out := make([]Record, 0, j.size)
	for account, txs := range j.accounts {
		for txID, until := range txs {
			out = append(out, Record{Account: account, TxID: txID, ValidUntil: until})
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := bytes.Compare(a.Account[:], b.Account[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.TxID, b.TxID)
	})
	return out
}

func (j *Journal) lookup(account id.ActorID, txID id.TxID) (time.Time, bool) {
	until, ok := j.accounts[account][txID]
	return until, ok
}

func (j *Journal) put(r Record) {
	txs, ok := j.accounts[r.Account]
	if !ok {
		txs = make(map[id.TxID]time.Time)
		j.accounts[r.Account] = txs
	}
	if _, exists := txs[r.TxID]; !exists {
		j.size++
	}
	txs[r.TxID] = r.ValidUntil
}
