// Package payout implements the pull-based payout ledger. Distribution logic
// credits balances; account holders withdraw independently. Withdrawal zeroes
// the balance before invoking the external transfer, closing the reentrancy
// window, and restores it if the transfer fails.
package payout

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Ledger maps accounts to accrued balances. Balances never go negative.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
	transfer domain.Transferer
}

// New creates an empty Ledger that completes withdrawals through the given
// Transferer.
func New(transfer domain.Transferer) *Ledger {
	return &Ledger{
		balances: make(map[common.Address]uint64),
		transfer: transfer,
	}
}

// Credit increases an account's balance. The only failure path is the
// integer-overflow guard, practically unreachable given bounded inputs.
func (l *Ledger) Credit(account common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(account, amount)
}

func (l *Ledger) creditLocked(account common.Address, amount uint64) error {
	cur := l.balances[account]
	if cur+amount < cur {
		return domain.ErrBalanceOverflow
	}
	l.balances[account] = cur + amount
	return nil
}

// CreditAll applies a batch of credits atomically: every credit is
// overflow-checked before any balance changes, so a failing batch leaves the
// ledger untouched.
func (l *Ledger) CreditAll(credits map[common.Address]uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for account, amount := range credits {
		if cur := l.balances[account]; cur+amount < cur {
			return fmt.Errorf("payout: credit %s: %w", account.Hex(), domain.ErrBalanceOverflow)
		}
	}
	for account, amount := range credits {
		l.balances[account] += amount
	}
	return nil
}

// Balance returns an account's current accrued balance.
func (l *Ledger) Balance(account common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Withdraw zeroes the account's balance and then executes the external
// transfer. If the transfer fails the balance is restored and the whole call
// aborts; other accounts are never affected. Returns the amount transferred.
func (l *Ledger) Withdraw(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	amount := l.balances[account]
	if amount == 0 {
		l.mu.Unlock()
		return 0, domain.ErrNothingToWithdraw
	}
	// Debit before the external interaction.
	l.balances[account] = 0
	l.mu.Unlock()

	if err := l.transfer.Transfer(ctx, account, amount); err != nil {
		// Restore the debited amount; credits that landed in between are
		// preserved. If those credits pushed the balance so high that the
		// restore would wrap, cap at the ceiling instead.
		l.mu.Lock()
		if cur := l.balances[account]; cur+amount < cur {
			l.balances[account] = math.MaxUint64
		} else {
			l.balances[account] = cur + amount
		}
		l.mu.Unlock()
		return 0, fmt.Errorf("payout: withdraw %s: %w: %v", account.Hex(), domain.ErrTransferFailed, err)
	}

	return amount, nil
}
