package attnlens

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/model"
)

// plainAdapter has no attention support.
type plainAdapter struct{}

func (plainAdapter) Setup(ctx context.Context) error { return nil }

func (plainAdapter) Score(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][]float64, error) {
	return nil, nil
}

func (plainAdapter) Generate(ctx context.Context, enc *model.BatchEncoding, params map[string]any) (*model.GenerationResult, error) {
	return &model.GenerationResult{Texts: []string{"ref"}}, nil
}

func (plainAdapter) Encode(ctx context.Context, texts []string, withBaseline bool) (*model.BatchEncoding, error) {
	enc := &model.BatchEncoding{}
	for range texts {
		enc.InputIDs = append(enc.InputIDs, []int64{1, 2})
		enc.AttentionMask = append(enc.AttentionMask, []int64{1, 1})
	}
	return enc, nil
}

func (plainAdapter) IDsToTokens(ids [][]int64, skipSpecial bool) [][]string {
	tokens := make([][]string, len(ids))
	for i := range ids {
		tokens[i] = make([]string, len(ids[i]))
		for j, id := range ids[i] {
			tokens[i][j] = fmt.Sprintf("t%d", id)
		}
	}
	return tokens
}

func (plainAdapter) TokensToIDs(tokens [][]string) [][]int64 { return nil }

func (plainAdapter) Close() error { return nil }

// attentiveAdapter returns fixed per-layer weights.
type attentiveAdapter struct {
	plainAdapter
	layers [][][]float64
}

func (a *attentiveAdapter) Attention(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][][][]float64, error) {
	weights := make([][][][]float64, enc.Batch())
	for i := range weights {
		weights[i] = a.layers
	}
	return weights, nil
}

func TestAttnLens_RequiresAttentionScorer(t *testing.T) {
	m, err := attribution.New(context.Background(), plainAdapter{}, MethodName)
	require.NoError(t, err)

	_, err = m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
	})
	assert.ErrorIs(t, err, model.ErrNoAttention)
}

func TestAttnLens_SingleLayer(t *testing.T) {
	adapter := &attentiveAdapter{layers: [][][]float64{
		{{0.9, 0.1}, {0.2, 0.8}}, // layer 0: [step][source]
	}}
	m, err := attribution.New(context.Background(), adapter, MethodName)
	require.NoError(t, err)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
		Params:         map[string]any{"layer": 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, results[0].Steps, 2)
	assert.Equal(t, []float64{0.9, 0.1}, results[0].Steps[0].Scores)
	assert.Equal(t, []float64{0.2, 0.8}, results[0].Steps[1].Scores)
}

func TestAttnLens_MeanOverLayers(t *testing.T) {
	adapter := &attentiveAdapter{layers: [][][]float64{
		{{1, 0}, {0, 1}},
		{{0, 1}, {1, 0}},
	}}
	m, err := attribution.New(context.Background(), adapter, MethodName)
	require.NoError(t, err)

	results, err := m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
	})
	require.NoError(t, err)

	require.Len(t, results[0].Steps, 2)
	assert.Equal(t, []float64{0.5, 0.5}, results[0].Steps[0].Scores)
	assert.Equal(t, []float64{0.5, 0.5}, results[0].Steps[1].Scores)
}

func TestAttnLens_LayerOutOfRange(t *testing.T) {
	adapter := &attentiveAdapter{layers: [][][]float64{
		{{1, 0}},
	}}
	m, err := attribution.New(context.Background(), adapter, MethodName)
	require.NoError(t, err)

	_, err = m.AttributeBatch(context.Background(), []string{"in"}, attribution.Options{
		ReferenceTexts: []string{"ref"},
		Params:         map[string]any{"layer": 5},
	})
	assert.ErrorContains(t, err, "out of range")
}
