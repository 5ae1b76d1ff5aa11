package stable

import (
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

const (
	// MaxAmp bounds the unscaled amplification coefficient.
	MaxAmp = 1_000_000

	// MaxAmpChange bounds the ratio between the current and the target amp
	// of a single promotion.
	MaxAmpChange = 10

	// MinAmpChangingTime is the shortest allowed promotion window, seconds.
	MinAmpChangingTime = 86_400
)

// AmpState is the linear amp promotion schedule. Values carry
// swapmath.AmpPrecision; outside the window the schedule is flat.
type AmpState struct {
	InitAmp     uint64 `json:"init_amp_value"`
	InitAmpTime uint64 `json:"init_amp_time"`
	NextAmp     uint64 `json:"next_amp_value"`
	NextAmpTime uint64 `json:"next_amp_time"`
}

func newAmpState(amp, now uint64) AmpState {
	scaled := amp * swapmath.AmpPrecision
	return AmpState{
		InitAmp:     scaled,
		InitAmpTime: now,
		NextAmp:     scaled,
		NextAmpTime: now,
	}
}

// Current returns the amp value at blockTime, interpolating linearly inside
// the promotion window and clamping outside it.
func (s AmpState) Current(blockTime uint64) uint64 {
	if blockTime >= s.NextAmpTime {
		return s.NextAmp
	}
	if blockTime <= s.InitAmpTime {
		return s.InitAmp
	}
	elapsed := blockTime - s.InitAmpTime
	window := s.NextAmpTime - s.InitAmpTime
	if s.NextAmp >= s.InitAmp {
		return s.InitAmp + (s.NextAmp-s.InitAmp)*elapsed/window
	}
	return s.InitAmp - (s.InitAmp-s.NextAmp)*elapsed/window
}

// startChanging schedules a promotion from the current value towards
// nextAmp, completing at nextAmpTime. nextAmp is unscaled.
func (s *AmpState) startChanging(nextAmp, nextAmpTime, now uint64) error {
	if nextAmp == 0 || nextAmp > MaxAmp {
		return types.ErrIncorrectAmp
	}
	// one promotion per window: the previous schedule must have aged a
	// full window before the next one starts
	if now < s.InitAmpTime+MinAmpChangingTime {
		return types.ErrMinAmpChangingTimeAssertion
	}
	if nextAmpTime < now+MinAmpChangingTime {
		return types.ErrMinAmpChangingTimeAssertion
	}

	current := s.Current(now)
	next := nextAmp * swapmath.AmpPrecision
	if next > current {
		if next > current*MaxAmpChange {
			return types.ErrMaxAmpChangeAssertion
		}
	} else if current > next*MaxAmpChange {
		return types.ErrMaxAmpChangeAssertion
	}

	s.InitAmp = current
	s.InitAmpTime = now
	s.NextAmp = next
	s.NextAmpTime = nextAmpTime
	return nil
}

// stopChanging freezes the schedule at the value it has now.
func (s *AmpState) stopChanging(now uint64) {
	current := s.Current(now)
	s.InitAmp = current
	s.InitAmpTime = now
	s.NextAmp = current
	s.NextAmpTime = now
}
