package format

// sidRegisterNames maps register offsets within a SID chip to their names.
var sidRegisterNames = [25]string{
	"Voice1FreqLo", "Voice1FreqHi", "Voice1PulseLo", "Voice1PulseHi",
	"Voice1Control", "Voice1AttackDecay", "Voice1SustainRelease",
	"Voice2FreqLo", "Voice2FreqHi", "Voice2PulseLo", "Voice2PulseHi",
	"Voice2Control", "Voice2AttackDecay", "Voice2SustainRelease",
	"Voice3FreqLo", "Voice3FreqHi", "Voice3PulseLo", "Voice3PulseHi",
	"Voice3Control", "Voice3AttackDecay", "Voice3SustainRelease",
	"FilterCutoffLo", "FilterCutoffHi", "FilterResonanceRouting",
	"FilterModeVolume",
}

// SIDRegisterName returns the name of a SID register by its offset within the
// chip or an empty string for the unmapped mirror area.
func SIDRegisterName(offset byte) string {
	if int(offset) < len(sidRegisterNames) {
		return sidRegisterNames[offset]
	}
	return ""
}
