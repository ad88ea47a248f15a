// Package allowance tracks how much each spender may move out of an owner's
// balance.
package allowance

import (
	"bytes"
	"fmt"
	"slices"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

type key struct {
	owner   id.ActorID
	spender id.ActorID
}

// Entry is one non-zero allowance.
type Entry struct {
	Owner   id.ActorID `json:"owner"`
	Spender id.ActorID `json:"spender"`
	Amount  id.Amount  `json:"amount"`
}

// Table maps (owner, spender) to an approved amount. Absent pairs are zero.
type Table struct {
	entries map[key]id.Amount
}

func New() *Table {
	return &Table{entries: make(map[key]id.Amount)}
}

// Restore rebuilds a table from persisted entries.
func Restore(entries []Entry) (*Table, error) {
	t := New()
	for _, e := range entries {
		k := key{owner: e.Owner, spender: e.Spender}
		if _, dup := t.entries[k]; dup {
			return nil, fmt.Errorf("duplicate allowance %s -> %s", e.Owner, e.Spender)
		}
		t.Approve(e.Owner, e.Spender, e.Amount)
	}
	return t, nil
}

// Allowance returns what spender may still move out of owner's balance.
func (t *Table) Allowance(owner, spender id.ActorID) id.Amount {
	return t.entries[key{owner: owner, spender: spender}]
}

// Approve replaces the allowance. A zero amount revokes it.
func (t *Table) Approve(owner, spender id.ActorID, amount id.Amount) {
	k := key{owner: owner, spender: spender}
	if amount.IsZero() {
		delete(t.entries, k)
		return
	}
	t.entries[k] = amount
}

// CanConsume reports whether spender may move amount out of owner's balance.
func (t *Table) CanConsume(owner, spender id.ActorID, amount id.Amount) error {
	if current := t.Allowance(owner, spender); current.Lt(amount) {
		return dErrors.New(dErrors.CodeNotAllowedToTransfer,
			fmt.Sprintf("allowance %s is less than %s", current, amount))
	}
	return nil
}

// Consume decrements the allowance by amount.
func (t *Table) Consume(owner, spender id.ActorID, amount id.Amount) error {
	if err := t.CanConsume(owner, spender, amount); err != nil {
		return err
	}
	remaining, _ := t.Allowance(owner, spender).Sub(amount)
	t.Approve(owner, spender, remaining)
	return nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns every non-zero allowance ordered by owner then spender.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for k, v := range t.entries {
		out = append(out, Entry{Owner: k.owner, Spender: k.spender, Amount: v})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := bytes.Compare(a.Owner[:], b.Owner[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Spender[:], b.Spender[:])
	})
	return out
}
