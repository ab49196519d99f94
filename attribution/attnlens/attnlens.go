// Package attnlens implements attention-weight attribution: the
// cross-attention each generated step pays to the input tokens is read
// off directly as importance. Requires an adapter that exposes
// attention weights.
package attnlens

import (
	"context"
	"fmt"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/mapsafe"
	"github.com/ekisa-team/salience/model"
)

// MethodName is the registry name of this method.
const MethodName = "attention"

func init() {
	attribution.Register(MethodName, New)
}

// AttnLens reads attention weights as attribution scores.
type AttnLens struct {
	attribution.HookState
	model *attribution.Model
}

// New constructs an attention method bound to a model.
func New(m *attribution.Model) attribution.Method {
	return &AttnLens{model: m}
}

// MethodName implements attribution.Method.
func (a *AttnLens) MethodName() string { return MethodName }

// AttributionArgs extracts the layer selector from a generic option
// bag. A layer of -1 averages over all layers.
func (a *AttnLens) AttributionArgs(params map[string]any) map[string]any {
	return map[string]any{
		"layer": mapsafe.Get(params, "layer", -1),
	}
}

// PrepareAndAttribute implements attribution.Method.
func (a *AttnLens) PrepareAndAttribute(ctx context.Context, texts, refs []string, start, end int, args map[string]any) ([]*attribution.SequenceAttribution, error) {
	scorer, ok := a.model.Adapter().(model.AttentionScorer)
	if !ok {
		return nil, model.ErrNoAttention
	}

	if err := a.Hook(ctx); err != nil {
		return nil, err
	}
	defer a.Unhook()

	prep, err := attribution.PrepareBatch(ctx, a.model, texts, refs)
	if err != nil {
		return nil, err
	}

	weights, err := scorer.Attention(ctx, prep.Encoding, prep.TargetIDs)
	if err != nil {
		return nil, fmt.Errorf("attnlens: failed to fetch attention weights: %w", err)
	}

	layer := mapsafe.Get(args, "layer", -1)

	results := make([]*attribution.SequenceAttribution, len(texts))
	for i := range texts {
		matrix, err := selectLayer(weights[i], layer)
		if err != nil {
			return nil, err
		}

		lo, hi := attribution.StepBounds(start, end, len(prep.TargetIDs[i]))
		steps := make([]attribution.StepScores, 0, hi-lo)
		for s := lo; s < hi; s++ {
			scores := make([]float64, len(prep.InputPositions[i]))
			if s < len(matrix) {
				for p, pos := range prep.InputPositions[i] {
					if pos < len(matrix[s]) {
						scores[p] = matrix[s][pos]
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

// selectLayer picks one layer's [step][source] matrix, or the mean over
// all layers when layer is negative.
func selectLayer(layers [][][]float64, layer int) ([][]float64, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("attnlens: adapter returned no attention layers")
	}
	if layer >= len(layers) {
		return nil, fmt.Errorf("attnlens: layer %d out of range (%d layers)", layer, len(layers))
	}
	if layer >= 0 {
		return layers[layer], nil
	}

	mean := make([][]float64, len(layers[0]))
	for s := range mean {
		mean[s] = make([]float64, len(layers[0][s]))
	}
	for _, m := range layers {
		for s := range m {
			for p := range m[s] {
				mean[s][p] += m[s][p]
			}
		}
	}
	for s := range mean {
		for p := range mean[s] {
			mean[s][p] /= float64(len(layers))
		}
	}
	return mean, nil
}
