package xyk

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

// maxSaleTaxRate bounds a single tax entry.
var maxSaleTaxRate = sdkmath.LegacyNewDecWithPrec(5, 1) // 0.5

// migrationSources enumerates the contracts a sale-tax pool may migrate
// from; any other source aborts.
var migrationSources = map[string]bool{
	"astroport-pair":              true,
	"astroport-pair-xyk-sale-tax": true,
}

// TaxConfig is one asset-directional sale tax: the rate applied to offered
// amounts of that asset and the recipient of the deduction.
type TaxConfig struct {
	Rate      sdkmath.LegacyDec `json:"tax_rate"`
	Recipient string            `json:"tax_recipient"`
}

// SaleTaxPool layers configurable per-asset sale taxes over the
// constant-product pool. Taxes apply to the offer side only, before the
// swap equation runs.
type SaleTaxPool struct {
	*Pool
	taxConfigs map[string]TaxConfig
	taxAdmin   string
}

// NewSaleTaxPool wraps a fresh constant-product pool with tax state.
func NewSaleTaxPool(msg InstantiateMsg, taxAdmin string, factory *ledger.Factory, bank *ledger.Bank) (*SaleTaxPool, error) {
	inner, err := NewPool(msg, factory, bank)
	if err != nil {
		return nil, err
	}
	return &SaleTaxPool{
		Pool:       inner,
		taxConfigs: make(map[string]TaxConfig),
		taxAdmin:   taxAdmin,
	}, nil
}

// SetTaxConfig installs or replaces the tax on one of the pair's assets;
// tax admin only.
func (p *SaleTaxPool) SetTaxConfig(sender string, info types.AssetInfo, cfg TaxConfig) error {
	if sender != p.taxAdmin {
		return types.ErrUnauthorized
	}
	if _, err := p.assetIndex(info); err != nil {
		return err
	}
	if cfg.Rate.IsNegative() || cfg.Rate.GT(maxSaleTaxRate) {
		return &types.IncorrectPoolParam{Name: "tax_rate", Min: "0", Max: maxSaleTaxRate.String()}
	}
	if cfg.Recipient == "" {
		return fmt.Errorf("%w: empty tax recipient", types.ErrInvalidAsset)
	}
	p.taxConfigs[info.ID()] = cfg
	return nil
}

// RemoveTaxConfig deletes the tax on an asset; tax admin only.
func (p *SaleTaxPool) RemoveTaxConfig(sender string, info types.AssetInfo) error {
	if sender != p.taxAdmin {
		return types.ErrUnauthorized
	}
	delete(p.taxConfigs, info.ID())
	return nil
}

// SetTaxAdmin hands the tax administration to a new address; current tax
// admin only.
func (p *SaleTaxPool) SetTaxAdmin(sender, newAdmin string) error {
	if sender != p.taxAdmin {
		return types.ErrUnauthorized
	}
	p.taxAdmin = newAdmin
	return nil
}

// TaxConfigFor returns the configured tax on an asset, if any.
func (p *SaleTaxPool) TaxConfigFor(info types.AssetInfo) (TaxConfig, bool) {
	cfg, ok := p.taxConfigs[info.ID()]
	return cfg, ok
}

// computeTax floors the deduction on an offered amount.
func (p *SaleTaxPool) computeTax(info types.AssetInfo, amount sdkmath.Int) (sdkmath.Int, *TaxConfig) {
	cfg, ok := p.taxConfigs[info.ID()]
	if !ok || !cfg.Rate.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	return cfg.Rate.MulInt(amount).TruncateInt(), &cfg
}

// Swap deducts the sale tax from the offered amount, forwards it to the tax
// recipient, and runs the constant-product swap on the remainder.
func (p *SaleTaxPool) Swap(env ledger.Env, info ledger.MsgInfo, msg SwapMsg) (*pool.SwapOutcome, error) {
	tax, taxCfg := p.computeTax(msg.OfferAsset.Info, msg.OfferAsset.Amount)
	if tax.IsZero() {
		return p.Pool.Swap(env, info, msg)
	}

	taxedOffer := msg.OfferAsset.Amount.Sub(tax)
	if !taxedOffer.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}

	// the full offer arrives; the swap must see only the taxed remainder
	inner := msg
	inner.OfferAsset = types.NewAsset(msg.OfferAsset.Info, taxedOffer)

	// for native offers, declared and attached amounts differ by the tax:
	// rewrite the attached view so the pre-op reserve subtraction and the
	// declared-amount check stay consistent
	innerInfo := info
	if msg.OfferAsset.Info.IsNative() {
		attached := info.AttachedAmount(msg.OfferAsset.Info.NativeToken.Denom)
		if !attached.Amount.Equal(msg.OfferAsset.Amount) {
			return nil, fmt.Errorf("%w: declared %s, attached %s of %s",
				types.ErrInvalidAsset, msg.OfferAsset.Amount, attached.Amount, msg.OfferAsset.Info.ID())
		}
		innerInfo.Funds = innerInfo.Funds.Sub(attached).
			Add(attached.SubAmount(tax))
	}

	outcome, err := p.Pool.Swap(env, innerInfo, inner)
	if err != nil {
		return nil, err
	}

	err = p.bank.Apply([]ledger.Transfer{{
		From:  p.pair.ContractAddr,
		To:    taxCfg.Recipient,
		Asset: types.NewAsset(msg.OfferAsset.Info, tax),
	}})
	if err != nil {
		return nil, err
	}

	outcome.OfferAsset = msg.OfferAsset
	outcome.TaxAmount = tax
	return outcome, nil
}

// Simulate mirrors Swap: the tax comes off the offer before the swap
// equation.
func (p *SaleTaxPool) Simulate(env ledger.Env, offerAsset types.Asset) (*pool.SimulationResponse, error) {
	tax, _ := p.computeTax(offerAsset.Info, offerAsset.Amount)
	taxed := offerAsset.Amount.Sub(tax)
	if !taxed.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}
	return p.Pool.Simulate(env, types.NewAsset(offerAsset.Info, taxed))
}

// ReverseSimulate inverts the tax by grossing the required offer up with
// ceil(offer / (1 - rate)).
func (p *SaleTaxPool) ReverseSimulate(env ledger.Env, askAsset types.Asset) (*pool.ReverseSimulationResponse, error) {
	resp, err := p.Pool.ReverseSimulate(env, askAsset)
	if err != nil {
		return nil, err
	}

	askIdx, err := p.assetIndex(askAsset.Info)
	if err != nil {
		return nil, err
	}
	offerInfo := p.pair.AssetInfos[1-askIdx]
	if cfg, ok := p.taxConfigs[offerInfo.ID()]; ok && cfg.Rate.IsPositive() {
		resp.OfferAmount = sdkmath.LegacyNewDecFromInt(resp.OfferAmount).
			Quo(sdkmath.LegacyOneDec().Sub(cfg.Rate)).
			Ceil().TruncateInt()
	}
	return resp, nil
}

// MigrateFrom validates the source contract name of a migration into the
// sale-tax variant.
func (p *SaleTaxPool) MigrateFrom(sourceName string) error {
	if !migrationSources[sourceName] {
		return fmt.Errorf("%w: %q", types.ErrMigrationError, sourceName)
	}
	return nil
}
