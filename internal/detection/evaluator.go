package detection

import (
	"math"
	"time"

	"geowarden/internal/geo"
	"geowarden/internal/intelligence"
)

// Sighting is a previously recorded position of the same user.
type Sighting struct {
	Position   geo.Point
	DetectedAt time.Time
}

// Input is everything Evaluate needs to judge one claim.
type Input struct {
	Claimed geo.Point
	// Nil when the address is unknown
	Intel *intelligence.Result
	// Nil when the user has no earlier detection
	Prior       *Sighting
	RecentCount int64
	Now         time.Time
}

// Signals is the outcome of Evaluate before clamping.
type Signals struct {
	Flags       []Flag
	RawScore    int
	DistanceKm  int
	VelocityKmh *int
	IPPosition  geo.Point
}

// Has reports whether flag was raised.
func (s *Signals) Has(flag Flag) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func (s *Signals) raise(flag Flag, weight int) {
	if s.Has(flag) {
		return
	}
	s.Flags = append(s.Flags, flag)
	s.RawScore += weight
}

// Evaluate computes the flags and raw score for a claim. It performs no I/O.
func Evaluate(in Input, cfg Config) Signals {
	var s Signals

	applyIPDistance(&s, in, cfg)

	if in.Prior != nil {
		travelKm := geo.DistanceKm(in.Prior.Position, in.Claimed)
		applyVelocity(&s, travelKm, in.Now.Sub(in.Prior.DetectedAt), cfg)
		applyLargeJump(&s, travelKm, cfg)
	}

	if in.Intel != nil {
		if in.Intel.IsVPN {
			s.raise(FlagVPNOrProxy, cfg.VPNWeight)
		}
		if in.Intel.IsDataCenter {
			s.raise(FlagDataCenterIP, cfg.DataCenterWeight)
		}
	}

	if in.RecentCount > cfg.FrequentChangeLimit {
		s.raise(FlagFrequentLocationChanges, cfg.FrequentChangeWeight)
	}

	applyImpossibleVelocityFloor(&s, cfg)
	return s
}

// applyIPDistance compares the claim with the address position. Without a located
// intelligence result the address is assumed to be where the user says it is.
func applyIPDistance(s *Signals, in Input, cfg Config) {
	s.IPPosition = in.Claimed
	if in.Intel == nil || !in.Intel.HasLocation {
		return
	}

	s.IPPosition = geo.Point{Latitude: in.Intel.Latitude, Longitude: in.Intel.Longitude}
	distance := geo.DistanceKm(in.Claimed, s.IPPosition)
	s.DistanceKm = int(distance)

	if band, ok := matchBand(distance, cfg.DistanceBands); ok {
		s.raise(band.Flag, band.Weight)
	}
}

func applyVelocity(s *Signals, travelKm float64, elapsed time.Duration, cfg Config) {
	if elapsed <= 0 {
		elapsed = cfg.ClockAnomalyElapsed
	}
	if cfg.MinVelocityInterval > 0 && elapsed < cfg.MinVelocityInterval {
		return
	}

	velocity := int(math.Round(travelKm / elapsed.Hours()))
	s.VelocityKmh = &velocity

	if band, ok := matchBand(float64(velocity), cfg.VelocityBands); ok {
		s.raise(band.Flag, band.Weight)
	}
}

// applyLargeJump catches priors too recent for a velocity to be computed.
func applyLargeJump(s *Signals, travelKm float64, cfg Config) {
	if s.VelocityKmh != nil || travelKm <= cfg.LargeJumpKm {
		return
	}
	velocity := int(math.Round(travelKm))
	s.VelocityKmh = &velocity
	s.raise(FlagImpossibleVelocity, cfg.impossibleVelocityWeight())
}

func applyImpossibleVelocityFloor(s *Signals, cfg Config) {
	if s.Has(FlagImpossibleVelocity) && s.RawScore < cfg.ImpossibleVelocityFloor {
		s.RawScore = cfg.ImpossibleVelocityFloor
	}
}

func matchBand(value float64, bands []Band) (Band, bool) {
	for _, band := range bands {
		if value > band.Above {
			return band, true
		}
	}
	return Band{}, false
}

// Score clamps a raw score into [0, MaxScore].
func Score(raw int, cfg Config) int {
	if raw < 0 {
		return 0
	}
	if raw > cfg.MaxScore {
		return cfg.MaxScore
	}
	return raw
}

// ShouldPersist reports whether a clamped score is worth recording.
func ShouldPersist(score int, cfg Config) bool {
	return score >= cfg.PersistThreshold
}
