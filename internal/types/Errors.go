/*

Error catalogue for the pool cores and the incentives engine. Every operation
failure surfaces one of these discriminants; human-readable text is secondary
to the typed value, and callers are expected to match with errors.Is /
errors.As.

*/

package types

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Validation errors.
var (
	ErrDoublingAssets        = errors.New("doubling assets in asset infos")
	ErrInvalidAsset          = errors.New("invalid asset")
	ErrAssetMismatch         = errors.New("asset does not belong to the pair")
	ErrInvalidZeroAmount     = errors.New("amount must be greater than zero")
	ErrInvalidNumberOfAssets = errors.New("exactly two assets are expected")
	ErrWrongAssetLength      = errors.New("wrong number of assets provided")
	ErrNonSupported          = errors.New("operation is not supported for this pool type")
	ErrCw20DirectSwap        = errors.New("wrapped token swaps must go through the token's send hook")
)

// Economics errors.
var (
	ErrMinimumLiquidityAmount  = errors.New("initial liquidity must exceed the minimum liquidity lockup")
	ErrLiquidityAmountTooSmall = errors.New("provided liquidity does not grow the pool invariant")
	ErrMaxSpreadAssertion      = errors.New("operation exceeds max spread limit")
	ErrSwapNonPositiveReturn   = errors.New("swap would return a non-positive amount")
	ErrMaxSlippageAssertion    = errors.New("operation exceeds max slippage tolerance")
	ErrAllowedSpreadAssertion  = errors.New("allowed spread must be within [0, 0.5]")
)

// Parameter errors.
var (
	ErrIncorrectAmp                = errors.New("amp coefficient out of bounds")
	ErrMaxAmpChangeAssertion       = errors.New("amp change exceeds the maximum ratio")
	ErrMinAmpChangingTimeAssertion = errors.New("amp change scheduled too soon")
	ErrFeeShareOutOfBounds         = errors.New("fee share bps out of bounds")
)

// Authorisation errors. Unauthorized covers every ownership, guardian and
// factory gate uniformly.
var (
	ErrUnauthorized = errors.New("unauthorized")
)

// Incentives errors.
var (
	ErrBlockedToken               = errors.New("reward or pair token is blocked")
	ErrBlockedPairType            = errors.New("pair type is blacklisted")
	ErrIncentivizationFeeExpected = errors.New("incentivization fee must be attached for a new reward token")
	ErrTooManyRewardTokens        = errors.New("too many distinct reward tokens on this pool")
	ErrDuplicatedPoolFound        = errors.New("duplicated pool found")
	ErrZeroAllocPoint             = errors.New("allocation points must be greater than zero")
	ErrPositionDoesntExist        = errors.New("position does not exist")
	ErrAmountExceedsBalance       = errors.New("amount exceeds staked balance")
	ErrNoOrphanedRewards          = errors.New("no orphaned rewards to claim")
	ErrGeneratorsLimitExceeded    = errors.New("generators limit exceeded in one call")
)

// Lifecycle / infrastructure errors.
var (
	ErrFailedToParseReply        = errors.New("failed to parse reply")
	ErrMigrationError            = errors.New("unsupported migration source")
	ErrAutoStakeError            = errors.New("auto stake failed")
	ErrOwnershipProposalNotFound = errors.New("ownership proposal not found")
	ErrOwnershipProposalExpired  = errors.New("ownership proposal expired")
)

// ProvideSlippageViolation reports the exact LP shortfall on provide.
type ProvideSlippageViolation struct {
	Got  sdkmath.Int
	Want sdkmath.Int
}

func (e *ProvideSlippageViolation) Error() string {
	return fmt.Sprintf("provide slippage violation: received %s LP, wanted at least %s", e.Got, e.Want)
}

// WithdrawSlippageViolation reports the asset whose refund fell short.
type WithdrawSlippageViolation struct {
	AssetID string
	Got     sdkmath.Int
	Want    sdkmath.Int
}

func (e *WithdrawSlippageViolation) Error() string {
	return fmt.Sprintf("withdraw slippage violation on %s: refund %s, wanted at least %s", e.AssetID, e.Got, e.Want)
}

// IncorrectPoolParam reports a pool parameter outside its allowed range.
type IncorrectPoolParam struct {
	Name string
	Min  string
	Max  string
}

func (e *IncorrectPoolParam) Error() string {
	return fmt.Sprintf("incorrect pool parameter %q: must be within [%s, %s]", e.Name, e.Min, e.Max)
}
