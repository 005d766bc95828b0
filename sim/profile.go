package sim

import "math/rand"

// Phase is a stretch of constant load
type Phase struct {
	Duration uint32 `yaml:"duration_ms"`
	Load     uint8  `yaml:"load"`
}

// Profile is a sequence of load phases
type Profile []Phase

// Duration returns the total length of the profile in ms
func (p Profile) Duration() uint32 {
	var total uint32
	for _, ph := range p {
		total += ph.Duration
	}
	return total
}

// Burst profile limits: within every window one burst of 60-70% load
// lasting 1-5s starts at a random offset
const (
	BurstWindowMS = 60000
	BurstMinMS    = 1000
	BurstMaxMS    = 5000
	BurstMinLoad  = 60
	BurstMaxLoad  = 70
)

// RandomBursts builds a profile of windows idle at baseLoad, each holding
// one random high-load burst
func RandomBursts(seed int64, windows int, baseLoad uint8) Profile {
	rng := rand.New(rand.NewSource(seed))
	p := make(Profile, 0, windows*3)
	for i := 0; i < windows; i++ {
		length := uint32(BurstMinMS + rng.Intn(BurstMaxMS-BurstMinMS+1))
		load := uint8(BurstMinLoad + rng.Intn(BurstMaxLoad-BurstMinLoad+1))
		start := uint32(rng.Intn(int(BurstWindowMS - length)))

		if start > 0 {
			p = append(p, Phase{Duration: start, Load: baseLoad})
		}
		p = append(p, Phase{Duration: length, Load: load})
		if rest := BurstWindowMS - start - length; rest > 0 {
			p = append(p, Phase{Duration: rest, Load: baseLoad})
		}
	}
	return p
}
