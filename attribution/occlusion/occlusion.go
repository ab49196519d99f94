// Package occlusion implements leave-one-out perturbation attribution:
// each input token is replaced with the baseline id and the drop in the
// reference score is taken as that token's importance.
package occlusion

import (
	"context"
	"fmt"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/mapsafe"
	"github.com/ekisa-team/salience/model"
)

// MethodName is the registry name of this method.
const MethodName = "occlusion"

func init() {
	attribution.Register(MethodName, New)
}

// Occlusion scores input tokens by re-scoring the reference with each
// token occluded. Needs only the adapter's Score primitive.
type Occlusion struct {
	attribution.HookState
	model *attribution.Model
}

// New constructs an occlusion method bound to a model.
func New(m *attribution.Model) attribution.Method {
	return &Occlusion{model: m}
}

// MethodName implements attribution.Method.
func (o *Occlusion) MethodName() string { return MethodName }

// AttributionArgs extracts occlusion-specific options from a generic
// option bag.
func (o *Occlusion) AttributionArgs(params map[string]any) map[string]any {
	return map[string]any{
		"normalize": mapsafe.Get(params, "normalize", false),
	}
}

// PrepareAndAttribute implements attribution.Method.
func (o *Occlusion) PrepareAndAttribute(ctx context.Context, texts, refs []string, start, end int, args map[string]any) ([]*attribution.SequenceAttribution, error) {
	if err := o.Hook(ctx); err != nil {
		return nil, err
	}
	defer o.Unhook()

	prep, err := attribution.PrepareBatch(ctx, o.model, texts, refs)
	if err != nil {
		return nil, err
	}

	adapter := o.model.Adapter()
	base, err := adapter.Score(ctx, prep.Encoding, prep.TargetIDs)
	if err != nil {
		return nil, fmt.Errorf("occlusion: base scoring failed: %w", err)
	}

	normalize := mapsafe.Get(args, "normalize", false)

	results := make([]*attribution.SequenceAttribution, len(texts))
	for i := range texts {
		lo, hi := attribution.StepBounds(start, end, len(prep.TargetIDs[i]))

		// One occluded scoring pass per valid input position; each pass
		// yields deltas for every target step at once.
		deltas := make([][]float64, len(prep.InputPositions[i]))
		for p, pos := range prep.InputPositions[i] {
			occluded, err := adapter.Score(ctx, occludeAt(prep.Encoding, i, pos), prep.TargetIDs[i:i+1])
			if err != nil {
				return nil, fmt.Errorf("occlusion: scoring with position %d occluded failed: %w", pos, err)
			}
			deltas[p] = make([]float64, len(base[i]))
			for s := range base[i] {
				if s < len(occluded[0]) {
					deltas[p][s] = base[i][s] - occluded[0][s]
				}
			}
		}

		steps := make([]attribution.StepScores, 0, hi-lo)
		for s := lo; s < hi; s++ {
			scores := make([]float64, len(deltas))
			for p := range deltas {
				if s < len(deltas[p]) {
					scores[p] = deltas[p][s]
				}
			}
			if normalize {
				normalizeL1(scores)
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

// occludeAt copies the i-th sequence of enc with the token at pos
// replaced by its baseline id.
func occludeAt(enc *model.BatchEncoding, i, pos int) *model.BatchEncoding {
	ids := make([]int64, len(enc.InputIDs[i]))
	copy(ids, enc.InputIDs[i])
	if enc.BaselineIDs != nil {
		ids[pos] = enc.BaselineIDs[i][pos]
	} else {
		ids[pos] = 0
	}

	return &model.BatchEncoding{
		InputIDs:      [][]int64{ids},
		AttentionMask: [][]int64{enc.AttentionMask[i]},
	}
}

func normalizeL1(scores []float64) {
	var total float64
	for _, s := range scores {
		if s < 0 {
			total -= s
		} else {
			total += s
		}
	}
	if total == 0 {
		return
	}
	for i := range scores {
		scores[i] /= total
	}
}
