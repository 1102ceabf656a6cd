package simulations

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
)

// --- Wallet view ---

// WalletView exposes the strategy's own balances.
type WalletView struct{ c *Chain }

var _ external.Wallet = WalletView{}

func (c *Chain) Wallet() WalletView { return WalletView{c} }

func (v WalletView) BalanceOf(_ context.Context, token string) (sdkmath.Int, error) {
	return v.c.BalanceOf(v.c.strategy, token), nil
}

func (v WalletView) Transfer(_ context.Context, token, to string, amount sdkmath.Int) error {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.debit(c.strategy, token, amount); err != nil {
		return err
	}
	c.credit(to, token, amount)
	return nil
}

// --- Splitter view ---

type SplitterView struct{ c *Chain }

var _ external.Splitter = SplitterView{}

func (c *Chain) Splitter() SplitterView { return SplitterView{c} }

func (v SplitterView) Address() string { return v.c.splitter }

func (v SplitterView) ReportEarnedLost(_ context.Context, earned, lost sdkmath.Int) error {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure("report"); err != nil {
		return err
	}
	c.state.earnedLostTrail = append(c.state.earnedLostTrail, EarnedLostReport{Earned: earned, Lost: lost})
	return nil
}

// --- Journal ---

var ErrTxClosed = errors.New("journal transaction already closed")

type JournalView struct{ c *Chain }

var _ external.Journal = JournalView{}

func (c *Chain) Journal() JournalView { return JournalView{c} }

// Begin snapshots the ledger. Rollback restores it; Commit drops the snapshot.
func (v JournalView) Begin(_ context.Context) (external.Tx, error) {
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	return &chainTx{c: v.c, snapshot: v.c.state.clone()}, nil
}

type chainTx struct {
	c        *Chain
	snapshot *ledger
	closed   bool
}

func (t *chainTx) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	t.snapshot = nil
	return nil
}

func (t *chainTx) Rollback() error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	t.c.mu.Lock()
	t.c.state = t.snapshot
	t.c.mu.Unlock()
	t.c.logger.Warn().Msg("Simulated chain rolled back")
	return nil
}
