package core

// Level indexes the frequency table; 0 is the fastest
type Level uint8

const (
	Level72MHz Level = iota
	Level64MHz
	Level56MHz
	Level48MHz
	Level40MHz
	Level32MHz
	Level24MHz
	Level16MHz
	Level8MHz

	NumLevels = 9
)

// HSEFrequency is the external crystal the PLL multiplies
const HSEFrequency = 8000000

// HSIFrequency is the internal RC oscillator
const HSIFrequency = 8000000

// FrequencyDescriptor describes one operating point
type FrequencyDescriptor struct {
	Frequency    uint32      // Target SYSCLK in Hz
	Source       ClockSource // SYSCLK source
	PLLMul       uint8       // PLL multiplier, 0 when the PLL is not used
	FlashLatency uint8       // Flash wait states at this frequency
}

// frequencyTable is ordered from highest to lowest frequency.
// Flash latency: 0 WS up to 24MHz, 1 WS up to 48MHz, 2 WS above.
var frequencyTable = [NumLevels]FrequencyDescriptor{
	{72000000, SourcePLL, 9, 2},
	{64000000, SourcePLL, 8, 2},
	{56000000, SourcePLL, 7, 2},
	{48000000, SourcePLL, 6, 1},
	{40000000, SourcePLL, 5, 1},
	{32000000, SourcePLL, 4, 1},
	{24000000, SourcePLL, 3, 0},
	{16000000, SourcePLL, 2, 0},
	{8000000, SourceHSI, 0, 0},
}

// Descriptor returns the table entry for a level
func Descriptor(l Level) (FrequencyDescriptor, bool) {
	if int(l) >= NumLevels {
		return FrequencyDescriptor{}, false
	}
	return frequencyTable[l], true
}

// LevelForFrequency returns the level whose frequency matches hz exactly
func LevelForFrequency(hz uint32) (Level, bool) {
	for i := range frequencyTable {
		if frequencyTable[i].Frequency == hz {
			return Level(i), true
		}
	}
	return 0, false
}

// FlashLatencyFor returns the minimum flash wait states for a SYSCLK frequency
func FlashLatencyFor(hz uint32) uint8 {
	switch {
	case hz <= 24000000:
		return 0
	case hz <= 48000000:
		return 1
	default:
		return 2
	}
}

// needsHSE reports whether a descriptor requires the external oscillator
func (d FrequencyDescriptor) needsHSE() bool {
	return d.Source == SourcePLL || d.Source == SourceHSE
}

// clampLevel limits l+step to [0, NumLevels-1]
func clampLevel(l Level, step int) Level {
	n := int(l) + step
	if n < 0 {
		n = 0
	}
	if n > NumLevels-1 {
		n = NumLevels - 1
	}
	return Level(n)
}
