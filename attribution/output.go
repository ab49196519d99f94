package attribution

// Token pairs a vocabulary piece with its id.
type Token struct {
	Text string `json:"text"`
	ID   int64  `json:"id"`
}

// StepScores holds the attribution scores for one generated step: one
// score per input token, explaining the target token produced at that
// step.
type StepScores struct {
	Target Token     `json:"target"`
	Scores []float64 `json:"scores"`
}

// SequenceAttribution is the per-sequence attribution result: input and
// output tokens plus per-step scores over the input tokens.
type SequenceAttribution struct {
	Method       string       `json:"method"`
	InputTokens  []Token      `json:"input_tokens"`
	OutputTokens []Token      `json:"output_tokens"`
	Steps        []StepScores `json:"steps"`
}

// Aggregate reduces the per-step scores to one score per input token by
// averaging over the attributed steps. Returns nil when no steps were
// attributed.
func (s *SequenceAttribution) Aggregate() []float64 {
	if len(s.Steps) == 0 {
		return nil
	}
	agg := make([]float64, len(s.InputTokens))
	for _, step := range s.Steps {
		for i, score := range step.Scores {
			if i < len(agg) {
				agg[i] += score
			}
		}
	}
	for i := range agg {
		agg[i] /= float64(len(s.Steps))
	}
	return agg
}
