package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientSupply = errors.New("burn exceeds tracked supply")
)

// Transfer is a single token movement emitted by a pool operation.
type Transfer struct {
	From  string
	To    string
	Asset types.Asset
}

// Bank holds every account balance, native and token alike, keyed by the
// canonical asset ID. It also tracks total supply per asset so LP share
// supply queries stay O(1).
type Bank struct {
	balances map[string]map[string]sdkmath.Int
	supplies map[string]sdkmath.Int
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[string]map[string]sdkmath.Int),
		supplies: make(map[string]sdkmath.Int),
	}
}

// Balance returns the account's balance of the asset, zero if none.
func (b *Bank) Balance(account string, info types.AssetInfo) sdkmath.Int {
	if acc, ok := b.balances[account]; ok {
		if amt, ok := acc[info.ID()]; ok {
			return amt
		}
	}
	return sdkmath.ZeroInt()
}

// Supply returns the tracked total supply of an asset ID.
func (b *Bank) Supply(assetID string) sdkmath.Int {
	if amt, ok := b.supplies[assetID]; ok {
		return amt
	}
	return sdkmath.ZeroInt()
}

// Mint credits newly created units of an asset to an account.
func (b *Bank) Mint(account string, asset types.Asset) {
	b.credit(account, asset.Info.ID(), asset.Amount)
	b.supplies[asset.Info.ID()] = b.Supply(asset.Info.ID()).Add(asset.Amount)
}

// Burn destroys units held by an account.
func (b *Bank) Burn(account string, asset types.Asset) error {
	if err := b.debit(account, asset.Info.ID(), asset.Amount); err != nil {
		return err
	}
	supply := b.Supply(asset.Info.ID())
	if supply.LT(asset.Amount) {
		return fmt.Errorf("%w: %s of %s", ErrInsufficientSupply, asset.Amount, asset.Info.ID())
	}
	b.supplies[asset.Info.ID()] = supply.Sub(asset.Amount)
	return nil
}

// Send moves units between accounts.
func (b *Bank) Send(from, to string, asset types.Asset) error {
	if asset.Amount.IsZero() {
		return nil
	}
	if err := b.debit(from, asset.Info.ID(), asset.Amount); err != nil {
		return err
	}
	b.credit(to, asset.Info.ID(), asset.Amount)
	return nil
}

// Apply executes a transfer batch atomically: on any failure the already
// applied prefix is reversed and the batch reports the error.
func (b *Bank) Apply(transfers []Transfer) error {
	for i, t := range transfers {
		if err := b.Send(t.From, t.To, t.Asset); err != nil {
			for j := i - 1; j >= 0; j-- {
				// reversing a successful send cannot fail
				_ = b.Send(transfers[j].To, transfers[j].From, transfers[j].Asset)
			}
			return fmt.Errorf("transfer %d of %d failed: %w", i+1, len(transfers), err)
		}
	}
	return nil
}

func (b *Bank) credit(account, assetID string, amount sdkmath.Int) {
	acc, ok := b.balances[account]
	if !ok {
		acc = make(map[string]sdkmath.Int)
		b.balances[account] = acc
	}
	cur, ok := acc[assetID]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	acc[assetID] = cur.Add(amount)
}

func (b *Bank) debit(account, assetID string, amount sdkmath.Int) error {
	acc, ok := b.balances[account]
	if !ok {
		return fmt.Errorf("%w: account %s holds no %s", ErrInsufficientFunds, account, assetID)
	}
	cur, ok := acc[assetID]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	if cur.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s of %s, needs %s",
			ErrInsufficientFunds, account, cur, assetID, amount)
	}
	acc[assetID] = cur.Sub(amount)
	return nil
}
