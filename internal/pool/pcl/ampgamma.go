package pcl

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

const (
	// minChangingTime is the shortest allowed promotion window, seconds.
	minChangingTime = 86_400

	// maxAmpChangeRatio bounds the amp ratio of a single promotion.
	maxAmpChangeRatio = 10
)

// AmpGamma is one (amp, gamma) point.
type AmpGamma struct {
	Amp   sdkmath.LegacyDec `json:"amp"`
	Gamma sdkmath.LegacyDec `json:"gamma"`
}

func (v AmpGamma) validate() error {
	if v.Amp.LT(ampMin) || v.Amp.GT(ampMax) {
		return &types.IncorrectPoolParam{Name: "amp", Min: ampMin.String(), Max: ampMax.String()}
	}
	if v.Gamma.LT(gammaMin) || v.Gamma.GT(gammaMax) {
		return &types.IncorrectPoolParam{Name: "gamma", Min: gammaMin.String(), Max: gammaMax.String()}
	}
	return nil
}

// AmpGammaState promotes amp and gamma together on one linear schedule.
type AmpGammaState struct {
	Init     AmpGamma `json:"init_amp_gamma"`
	Next     AmpGamma `json:"next_amp_gamma"`
	InitTime uint64   `json:"init_ts"`
	NextTime uint64   `json:"next_ts"`
}

func newAmpGammaState(v AmpGamma, now uint64) AmpGammaState {
	return AmpGammaState{Init: v, Next: v, InitTime: now, NextTime: now}
}

// Current returns the (amp, gamma) in effect at blockTime.
func (s AmpGammaState) Current(blockTime uint64) AmpGamma {
	if blockTime >= s.NextTime {
		return s.Next
	}
	if blockTime <= s.InitTime {
		return s.Init
	}
	elapsed := sdkmath.LegacyNewDec(int64(blockTime - s.InitTime))
	window := sdkmath.LegacyNewDec(int64(s.NextTime - s.InitTime))
	ratio := elapsed.Quo(window)
	return AmpGamma{
		Amp:   s.Init.Amp.Add(s.Next.Amp.Sub(s.Init.Amp).Mul(ratio)),
		Gamma: s.Init.Gamma.Add(s.Next.Gamma.Sub(s.Init.Gamma).Mul(ratio)),
	}
}

// promote schedules a new target, completing at futureTime.
func (s *AmpGammaState) promote(next AmpGamma, futureTime, now uint64) error {
	if err := next.validate(); err != nil {
		return err
	}
	// one promotion per window: the previous schedule must have aged a
	// full window before the next one starts
	if now < s.InitTime+minChangingTime {
		return types.ErrMinAmpChangingTimeAssertion
	}
	if futureTime < now+minChangingTime {
		return types.ErrMinAmpChangingTimeAssertion
	}

	current := s.Current(now)
	ratioCap := sdkmath.LegacyNewDec(maxAmpChangeRatio)
	if next.Amp.GT(current.Amp) {
		if next.Amp.GT(current.Amp.Mul(ratioCap)) {
			return types.ErrMaxAmpChangeAssertion
		}
	} else if current.Amp.GT(next.Amp.Mul(ratioCap)) {
		return types.ErrMaxAmpChangeAssertion
	}

	s.Init = current
	s.InitTime = now
	s.Next = next
	s.NextTime = futureTime
	return nil
}

// stop freezes the schedule at the value it has now.
func (s *AmpGammaState) stop(now uint64) {
	current := s.Current(now)
	s.Init = current
	s.Next = current
	s.InitTime = now
	s.NextTime = now
}
