// Package ledger keeps account balances and the issued supply.
//
// The sum of all balances always equals the issued supply, and the issued
// supply never exceeds the maximum fixed at construction. Every balance
// change goes through the unexported credit and debit halves, which the
// exported operations pair so the supply stays equal to the balances.
// Multi-account operations check every account involved before the first
// write, so a failed operation leaves balances untouched.
package ledger

import (
	"bytes"
	"fmt"
	"slices"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
)

// Entry is one non-zero balance.
type Entry struct {
	Account id.ActorID `json:"account"`
	Balance id.Amount  `json:"balance"`
}

// Ledger is not safe for concurrent use; the dispatcher serializes access.
type Ledger struct {
	balances  map[id.ActorID]id.Amount
	supply    id.Amount
	maxSupply id.Amount
}

// New returns an empty ledger that can issue at most maxSupply tokens.
func New(maxSupply id.Amount) *Ledger {
	return &Ledger{
		balances:  make(map[id.ActorID]id.Amount),
		maxSupply: maxSupply,
	}
}

// Restore rebuilds a ledger from persisted entries. It fails when the
// entries do not add up to supply or supply exceeds maxSupply.
func Restore(maxSupply, supply id.Amount, entries []Entry) (*Ledger, error) {
	if supply.Gt(maxSupply) {
		return nil, fmt.Errorf("issued supply %s exceeds maximum %s", supply, maxSupply)
	}
	l := New(maxSupply)
	var sum id.Amount
	for _, e := range entries {
		if e.Balance.IsZero() {
			continue
		}
		if _, dup := l.balances[e.Account]; dup {
			return nil, fmt.Errorf("duplicate balance entry for %s", e.Account)
		}
		var ok bool
		if sum, ok = sum.Add(e.Balance); !ok {
			return nil, fmt.Errorf("balances overflow 128 bits")
		}
		l.balances[e.Account] = e.Balance
	}
	if sum.Cmp(supply) != 0 {
		return nil, fmt.Errorf("balances sum to %s, issued supply is %s", sum, supply)
	}
	l.supply = supply
	return l, nil
}

// BalanceOf returns the balance of account; unknown accounts hold zero.
func (l *Ledger) BalanceOf(account id.ActorID) id.Amount {
	return l.balances[account]
}

// TotalSupply returns the issued supply.
func (l *Ledger) TotalSupply() id.Amount {
	return l.supply
}

// MaxSupply returns the ceiling fixed at construction.
func (l *Ledger) MaxSupply() id.Amount {
	return l.maxSupply
}

// Accounts returns the number of accounts with a non-zero balance.
func (l *Ledger) Accounts() int {
	return len(l.balances)
}

// CanMint reports whether amount more tokens may be issued.
func (l *Ledger) CanMint(amount id.Amount) error {
	next, ok := l.supply.Add(amount)
	if !ok {
		return dErrors.New(dErrors.CodeSupply, "issued supply would overflow")
	}
	if next.Gt(l.maxSupply) {
		return dErrors.New(dErrors.CodeMaxSupplyReached,
			fmt.Sprintf("minting %s would exceed maximum supply %s", amount, l.maxSupply))
	}
	return nil
}

// Mint issues amount new tokens to account and returns its new balance.
func (l *Ledger) Mint(account id.ActorID, amount id.Amount) (id.Amount, error) {
	if err := l.CanMint(amount); err != nil {
		return id.Amount{}, err
	}
	balance, err := l.credit(account, amount)
	if err != nil {
		return id.Amount{}, err
	}
	l.supply, _ = l.supply.Add(amount)
	return balance, nil
}

// CanDebit reports whether account holds at least amount.
func (l *Ledger) CanDebit(account id.ActorID, amount id.Amount) error {
	if l.BalanceOf(account).Lt(amount) {
		return dErrors.New(dErrors.CodeNotEnoughBalance,
			fmt.Sprintf("balance %s is less than %s", l.BalanceOf(account), amount))
	}
	return nil
}

// Burn destroys amount tokens held by account and returns the new issued
// supply.
func (l *Ledger) Burn(account id.ActorID, amount id.Amount) (id.Amount, error) {
	if err := l.debit(account, amount); err != nil {
		return id.Amount{}, err
	}
	// balance >= amount and balances sum to supply, so this cannot underflow
	l.supply, _ = l.supply.Sub(amount)
	return l.supply, nil
}

// Transfer moves amount from one account to another. from == to is a
// no-op that still requires the balance.
func (l *Ledger) Transfer(from, to id.ActorID, amount id.Amount) error {
	_, err := l.move(from, []id.ActorID{to}, amount)
	return err
}

// Distribute pays each recipient amount out of from and returns the total
// debited. Recipients may repeat; each occurrence is paid.
func (l *Ledger) Distribute(from id.ActorID, recipients []id.ActorID, amount id.Amount) (id.Amount, error) {
	return l.move(from, recipients, amount)
}

// DistributionTotal returns amount*len(recipients) or SupplyError when the
// product does not fit in 128 bits.
func DistributionTotal(recipients []id.ActorID, amount id.Amount) (id.Amount, error) {
	total, ok := amount.MulUint64(uint64(len(recipients)))
	if !ok {
		return id.Amount{}, dErrors.New(dErrors.CodeSupply,
			fmt.Sprintf("%s for %d recipients overflows 128 bits", amount, len(recipients)))
	}
	return total, nil
}

// move checks the whole move first, then applies it as one debit and one
// credit per recipient. Neither half can fail once the checks passed.
func (l *Ledger) move(from id.ActorID, recipients []id.ActorID, amount id.Amount) (id.Amount, error) {
	total, err := l.check(from, recipients, amount)
	if err != nil {
		return id.Amount{}, err
	}
	if err := l.debit(from, total); err != nil {
		return id.Amount{}, err
	}
	for _, to := range recipients {
		if _, err := l.credit(to, amount); err != nil {
			return id.Amount{}, err
		}
	}
	return total, nil
}

// check simulates a move on projected balances so repeated recipients and
// from appearing among them are accounted for.
func (l *Ledger) check(from id.ActorID, recipients []id.ActorID, amount id.Amount) (id.Amount, error) {
	total, err := DistributionTotal(recipients, amount)
	if err != nil {
		return id.Amount{}, err
	}
	if err := l.CanDebit(from, total); err != nil {
		return id.Amount{}, err
	}

	projected := make(map[id.ActorID]id.Amount, len(recipients)+1)
	projected[from], _ = l.BalanceOf(from).Sub(total)
	for _, to := range recipients {
		current, seen := projected[to]
		if !seen {
			current = l.BalanceOf(to)
		}
		next, ok := current.Add(amount)
		if !ok {
			return id.Amount{}, dErrors.New(dErrors.CodeSupply, fmt.Sprintf("balance of %s would overflow", to))
		}
		projected[to] = next
	}
	return total, nil
}

// credit adds amount to account without touching the supply counter.
// Callers pair it with a debit or a supply increase.
func (l *Ledger) credit(account id.ActorID, amount id.Amount) (id.Amount, error) {
	balance, ok := l.BalanceOf(account).Add(amount)
	if !ok {
		return id.Amount{}, dErrors.New(dErrors.CodeSupply, fmt.Sprintf("balance of %s would overflow", account))
	}
	l.set(account, balance)
	return balance, nil
}

// debit removes amount from account without touching the supply counter.
func (l *Ledger) debit(account id.ActorID, amount id.Amount) error {
	if err := l.CanDebit(account, amount); err != nil {
		return err
	}
	balance, _ := l.BalanceOf(account).Sub(amount)
	l.set(account, balance)
	return nil
}

// Entries returns every non-zero balance ordered by account.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.balances))
	for account, balance := range l.balances {
		out = append(out, Entry{Account: account, Balance: balance})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return bytes.Compare(a.Account[:], b.Account[:])
	})
	return out
}

func (l *Ledger) set(account id.ActorID, balance id.Amount) {
	if balance.IsZero() {
		delete(l.balances, account)
		return
	}
	l.balances[account] = balance
}
