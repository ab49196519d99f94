package occlusion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/model"
)

// stubAdapter scores a sequence as the sum of its input ids, so
// occluding a token to the zero baseline drops the score by exactly
// that token's id.
type stubAdapter struct {
	encodings map[string][]int64
}

func (s *stubAdapter) Setup(ctx context.Context) error { return nil }

func (s *stubAdapter) Encode(ctx context.Context, texts []string, withBaseline bool) (*model.BatchEncoding, error) {
	enc := &model.BatchEncoding{}
	for _, text := range texts {
		ids, ok := s.encodings[text]
		if !ok {
			return nil, fmt.Errorf("stub: unknown text %q", text)
		}
		mask := make([]int64, len(ids))
		for i := range mask {
			mask[i] = 1
		}
		enc.InputIDs = append(enc.InputIDs, ids)
		enc.AttentionMask = append(enc.AttentionMask, mask)
		if withBaseline {
			enc.BaselineIDs = append(enc.BaselineIDs, make([]int64, len(ids)))
		}
	}
	return enc, nil
}

func (s *stubAdapter) Score(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][]float64, error) {
	scores := make([][]float64, enc.Batch())
	for i := range enc.InputIDs {
		var total float64
		for _, id := range enc.InputIDs[i] {
			total += float64(id)
		}
		steps := make([]float64, len(targetIDs[i]))
		for s := range steps {
			steps[s] = total
		}
		scores[i] = steps
	}
	return scores, nil
}

func (s *stubAdapter) Generate(ctx context.Context, enc *model.BatchEncoding, params map[string]any) (*model.GenerationResult, error) {
	texts := make([]string, enc.Batch())
	for i := range texts {
		texts[i] = "ref"
	}
	return &model.GenerationResult{Texts: texts}, nil
}

func (s *stubAdapter) IDsToTokens(ids [][]int64, skipSpecial bool) [][]string {
	tokens := make([][]string, len(ids))
	for i := range ids {
		tokens[i] = make([]string, len(ids[i]))
		for j, id := range ids[i] {
			tokens[i][j] = fmt.Sprintf("t%d", id)
		}
	}
	return tokens
}

func (s *stubAdapter) TokensToIDs(tokens [][]string) [][]int64 {
	ids := make([][]int64, len(tokens))
	for i := range tokens {
		ids[i] = make([]int64, len(tokens[i]))
	}
	return ids
}

func (s *stubAdapter) Close() error { return nil }

func newModel(t *testing.T, adapter model.Adapter) *attribution.Model {
	t.Helper()

	m, err := attribution.New(context.Background(), adapter, MethodName)
	require.NoError(t, err)
	return m
}

func TestOcclusion_ScoresAreBaseMinusOccluded(t *testing.T) {
	adapter := &stubAdapter{encodings: map[string][]int64{
		"in":  {2, 3},
		"ref": {7, 8},
	}}
	m := newModel(t, adapter)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, MethodName, result.Method)
	assert.Equal(t, []attribution.Token{{Text: "t2", ID: 2}, {Text: "t3", ID: 3}}, result.InputTokens)
	assert.Equal(t, []attribution.Token{{Text: "t7", ID: 7}, {Text: "t8", ID: 8}}, result.OutputTokens)

	require.Len(t, result.Steps, 2)
	for _, step := range result.Steps {
		assert.Equal(t, []float64{2, 3}, step.Scores)
	}
}

func TestOcclusion_Normalize(t *testing.T) {
	adapter := &stubAdapter{encodings: map[string][]int64{
		"in":  {2, 3},
		"ref": {7},
	}}
	m := newModel(t, adapter)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
		Params:         map[string]any{"normalize": true},
	})
	require.NoError(t, err)

	require.Len(t, results[0].Steps, 1)
	assert.InDeltaSlice(t, []float64{0.4, 0.6}, results[0].Steps[0].Scores, 1e-9)
}

func TestOcclusion_StepWindow(t *testing.T) {
	adapter := &stubAdapter{encodings: map[string][]int64{
		"in":  {2, 3},
		"ref": {7, 8, 9},
	}}
	m := newModel(t, adapter)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
		StartPos:       2,
		EndPos:         3,
	})
	require.NoError(t, err)

	require.Len(t, results[0].Steps, 2)
	assert.Equal(t, int64(8), results[0].Steps[0].Target.ID)
	assert.Equal(t, int64(9), results[0].Steps[1].Target.ID)
}

func TestOcclusion_GeneratedReferences(t *testing.T) {
	adapter := &stubAdapter{encodings: map[string][]int64{
		"in":  {2, 3},
		"ref": {7},
	}}
	m := newModel(t, adapter)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []attribution.Token{{Text: "t7", ID: 7}}, results[0].OutputTokens)
}

func TestOcclusion_AttributionArgs(t *testing.T) {
	o := &Occlusion{}

	args := o.AttributionArgs(map[string]any{"normalize": true, "unrelated": "x"})
	assert.Equal(t, map[string]any{"normalize": true}, args)

	args = o.AttributionArgs(nil)
	assert.Equal(t, map[string]any{"normalize": false}, args)
}
