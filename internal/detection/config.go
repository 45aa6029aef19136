package detection

import "time"

// Flag names a signal raised during evaluation.
type Flag string

const (
	FlagIPDistanceExtreme       Flag = "ip_distance_extreme"
	FlagIPDistanceHigh          Flag = "ip_distance_high"
	FlagIPDistanceModerate      Flag = "ip_distance_moderate"
	FlagImpossibleVelocity      Flag = "impossible_velocity"
	FlagSuspiciousVelocity      Flag = "suspicious_velocity"
	FlagHighVelocity            Flag = "high_velocity"
	FlagVPNOrProxy              Flag = "vpn_or_proxy"
	FlagDataCenterIP            Flag = "datacenter_ip"
	FlagFrequentLocationChanges Flag = "frequent_location_changes"
)

// Band raises Flag with Weight when a measurement is strictly above Above.
type Band struct {
	Above  float64
	Flag   Flag
	Weight int
}

// Config holds every threshold and weight used by Evaluate and the Service.
// Values are copied into the Service at construction and never mutated afterwards.
type Config struct {
	// Checked in order, first match wins, so bands must be sorted by Above descending
	DistanceBands []Band
	VelocityBands []Band

	// Travel beyond this with no computed velocity counts as impossible
	LargeJumpKm float64
	// Elapsed time used when the clock went backwards or did not move
	ClockAnomalyElapsed time.Duration
	// Velocity is not computed for priors closer than this; zero always computes
	MinVelocityInterval time.Duration
	// Minimum total once impossible_velocity is raised
	ImpossibleVelocityFloor int

	VPNWeight        int
	DataCenterWeight int

	FrequentChangeWindow time.Duration
	FrequentChangeLimit  int64
	FrequentChangeWeight int

	// Scores at or above PersistThreshold are stored
	PersistThreshold int
	MaxScore         int
	// Scores at or above HighRiskScore count as high risk in user stats
	HighRiskScore int

	// Upper bound on the IP intelligence lookup
	IntelTimeout time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		DistanceBands: []Band{
			{Above: 500, Flag: FlagIPDistanceExtreme, Weight: 40},
			{Above: 200, Flag: FlagIPDistanceHigh, Weight: 25},
			{Above: 100, Flag: FlagIPDistanceModerate, Weight: 15},
		},
		VelocityBands: []Band{
			{Above: 1000, Flag: FlagImpossibleVelocity, Weight: 50},
			{Above: 500, Flag: FlagSuspiciousVelocity, Weight: 30},
			{Above: 200, Flag: FlagHighVelocity, Weight: 15},
		},
		LargeJumpKm:             3000,
		ClockAnomalyElapsed:     time.Hour,
		MinVelocityInterval:     0,
		ImpossibleVelocityFloor: 50,
		VPNWeight:               20,
		DataCenterWeight:        15,
		FrequentChangeWindow:    7 * 24 * time.Hour,
		FrequentChangeLimit:     10,
		FrequentChangeWeight:    10,
		PersistThreshold:        25,
		MaxScore:                100,
		HighRiskScore:           70,
		IntelTimeout:            2 * time.Second,
	}
}

func (c Config) clone() Config {
	c.DistanceBands = append([]Band(nil), c.DistanceBands...)
	c.VelocityBands = append([]Band(nil), c.VelocityBands...)
	return c
}

func (c Config) impossibleVelocityWeight() int {
	for _, band := range c.VelocityBands {
		if band.Flag == FlagImpossibleVelocity {
			return band.Weight
		}
	}
	return c.ImpossibleVelocityFloor
}
