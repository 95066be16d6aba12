package train

// ExplorationSchedule decays epsilon linearly from Start to End over Steps
// training steps, then holds End.
type ExplorationSchedule struct {
	Start float64 `yaml:"start" validate:"gte=0,lte=1"`
	End   float64 `yaml:"end" validate:"gte=0,lte=1"`
	Steps int     `yaml:"steps" validate:"gte=0"`
}

// At returns epsilon after step training steps.
func (s ExplorationSchedule) At(step int) float64 {
	if s.Steps <= 0 || step >= s.Steps {
		return s.End
	}
	if step <= 0 {
		return s.Start
	}
	frac := float64(step) / float64(s.Steps)
	return s.Start + (s.End-s.Start)*frac
}
