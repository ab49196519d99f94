package attribution

import (
	"context"
	"fmt"

	"github.com/ekisa-team/salience/model"
)

// Prepared is the shared encoding work done before a method scores a
// batch: encoded inputs, target ids and the token views of both.
type Prepared struct {
	// Encoding is the tokenized input batch, with baseline ids attached.
	Encoding *model.BatchEncoding

	// TargetIDs are the non-pad reference token ids per sequence.
	TargetIDs [][]int64

	// InputPositions holds, per sequence, the indices of non-pad input
	// positions in the padded encoding.
	InputPositions [][]int

	// InputTokens and OutputTokens are the token views aligned with
	// InputPositions and TargetIDs respectively.
	InputTokens  [][]Token
	OutputTokens [][]Token
}

// PrepareBatch encodes texts and reference texts through the model
// adapter and builds the token views attribution results are reported
// over.
func PrepareBatch(ctx context.Context, m *Model, texts, refs []string) (*Prepared, error) {
	adapter := m.Adapter()

	enc, err := adapter.Encode(ctx, texts, true)
	if err != nil {
		return nil, fmt.Errorf("attribution: failed to encode texts: %w", err)
	}

	refEnc, err := adapter.Encode(ctx, refs, false)
	if err != nil {
		return nil, fmt.Errorf("attribution: failed to encode reference texts: %w", err)
	}

	p := &Prepared{
		Encoding:       enc,
		TargetIDs:      make([][]int64, enc.Batch()),
		InputPositions: make([][]int, enc.Batch()),
		InputTokens:    make([][]Token, enc.Batch()),
		OutputTokens:   make([][]Token, enc.Batch()),
	}

	for i := range enc.InputIDs {
		for pos, valid := range enc.AttentionMask[i] {
			if valid == 1 {
				p.InputPositions[i] = append(p.InputPositions[i], pos)
			}
		}

		inputIDs := make([]int64, 0, len(p.InputPositions[i]))
		for _, pos := range p.InputPositions[i] {
			inputIDs = append(inputIDs, enc.InputIDs[i][pos])
		}
		p.InputTokens[i] = tokensOf(adapter, inputIDs)

		for pos, valid := range refEnc.AttentionMask[i] {
			if valid == 1 {
				p.TargetIDs[i] = append(p.TargetIDs[i], refEnc.InputIDs[i][pos])
			}
		}
		p.OutputTokens[i] = tokensOf(adapter, p.TargetIDs[i])
	}

	return p, nil
}

// StepBounds clamps the 1-based [start, end] step range against the
// actual number of target steps and returns 0-based half-open indices.
func StepBounds(start, end, steps int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > steps {
		end = steps
	}
	if start > end {
		return 0, 0
	}
	return start - 1, end
}

func tokensOf(adapter model.Adapter, ids []int64) []Token {
	pieces := adapter.IDsToTokens([][]int64{ids}, false)[0]
	tokens := make([]Token, len(ids))
	for i := range ids {
		tokens[i] = Token{Text: pieces[i], ID: ids[i]}
	}
	return tokens
}
