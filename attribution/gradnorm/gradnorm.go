// Package gradnorm implements gradient-norm attribution over adapters
// that expose per-token embedding-gradient norms. The numeric work
// stays in the adapter; this method only shapes the result.
package gradnorm

import (
	"context"
	"fmt"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/model"
)

// MethodName is the registry name of this method.
const MethodName = "gradient_norm"

func init() {
	attribution.Register(MethodName, New)
}

// GradNorm surfaces adapter-computed gradient norms as attribution
// scores.
type GradNorm struct {
	attribution.HookState
	model *attribution.Model
}

// New constructs a gradient-norm method bound to a model.
func New(m *attribution.Model) attribution.Method {
	return &GradNorm{model: m}
}

// MethodName implements attribution.Method.
func (g *GradNorm) MethodName() string { return MethodName }

// AttributionArgs implements attribution.Method. Gradient norms take no
// options.
func (g *GradNorm) AttributionArgs(params map[string]any) map[string]any {
	return map[string]any{}
}

// PrepareAndAttribute implements attribution.Method.
func (g *GradNorm) PrepareAndAttribute(ctx context.Context, texts, refs []string, start, end int, args map[string]any) ([]*attribution.SequenceAttribution, error) {
	scorer, ok := g.model.Adapter().(model.GradientScorer)
	if !ok {
		return nil, model.ErrNoGradients
	}

	if err := g.Hook(ctx); err != nil {
		return nil, err
	}
	defer g.Unhook()

	prep, err := attribution.PrepareBatch(ctx, g.model, texts, refs)
	if err != nil {
		return nil, err
	}

	norms, err := scorer.GradientNorms(ctx, prep.Encoding, prep.TargetIDs)
	if err != nil {
		return nil, fmt.Errorf("gradnorm: failed to fetch gradient norms: %w", err)
	}

	results := make([]*attribution.SequenceAttribution, len(texts))
	for i := range texts {
		lo, hi := attribution.StepBounds(start, end, len(prep.TargetIDs[i]))
		steps := make([]attribution.StepScores, 0, hi-lo)
		for s := lo; s < hi; s++ {
			scores := make([]float64, len(prep.InputPositions[i]))
			if s < len(norms[i]) {
				for p, pos := range prep.InputPositions[i] {
					if pos < len(norms[i][s]) {
						scores[p] = norms[i][s][pos]
					}
				}
			}
			steps = append(steps, attribution.StepScores{
				Target: prep.OutputTokens[i][s],
				Scores: scores,
			})
		}

		results[i] = &attribution.SequenceAttribution{
			Method:       MethodName,
			InputTokens:  prep.InputTokens[i],
			OutputTokens: prep.OutputTokens[i],
			Steps:        steps,
		}
	}

	return results, nil
}
