package model

import (
	"context"
	"time"
)

// Adapter is the boundary between the attribution layer and a concrete
// generative model. Implementations own tokenization, generation and
// scoring; the attribution layer never touches model internals directly.
type Adapter interface {
	// Setup prepares the adapter for use. Safe to call repeatedly.
	Setup(ctx context.Context) error

	// Score returns, for each sequence in the batch, the per-step score
	// (log-probability) of the target ids given the encoded input.
	Score(ctx context.Context, enc *BatchEncoding, targetIDs [][]int64) ([][]float64, error)

	// Generate produces output text for the encoded inputs. Callers that
	// only need the text ignore the metadata on the result.
	Generate(ctx context.Context, enc *BatchEncoding, params map[string]any) (*GenerationResult, error)

	// Encode tokenizes raw texts. When withBaseline is set the encoding
	// also carries a baseline (all-pad) id matrix of the same shape, for
	// use as an attribution reference.
	Encode(ctx context.Context, texts []string, withBaseline bool) (*BatchEncoding, error)

	// IDsToTokens converts id sequences to token strings, optionally
	// dropping special tokens.
	IDsToTokens(ids [][]int64, skipSpecial bool) [][]string

	// TokensToIDs converts token string sequences back to ids.
	TokensToIDs(tokens [][]string) [][]int64

	// Close releases underlying resources.
	Close() error
}

// AttentionScorer is an optional interface for adapters that can expose
// cross-attention weights between generated target steps and the
// encoded input.
type AttentionScorer interface {
	Adapter

	// Attention returns, per sequence, per layer, a [targetStep][source]
	// weight matrix averaged over heads.
	Attention(ctx context.Context, enc *BatchEncoding, targetIDs [][]int64) ([][][][]float64, error)
}

// GradientScorer is an optional interface for adapters that can expose
// per-token embedding-gradient norms with respect to each target step
// score.
type GradientScorer interface {
	Adapter

	// GradientNorms returns, per sequence, per target step, one norm per
	// input token.
	GradientNorms(ctx context.Context, enc *BatchEncoding, targetIDs [][]int64) ([][][]float64, error)
}

// BatchEncoding is the tokenized, padded representation of a batch of
// texts. Opaque to the attribution layer beyond being passed back into
// adapter calls.
type BatchEncoding struct {
	// InputIDs is the padded token id matrix, shape (batch, maxLen).
	InputIDs [][]int64

	// AttentionMask marks valid positions with 1 and padding with 0.
	AttentionMask [][]int64

	// BaselineIDs, when present, is an all-pad matrix of the same shape
	// used as the reference input by perturbation methods.
	BaselineIDs [][]int64
}

// Batch returns the number of sequences in the encoding.
func (e *BatchEncoding) Batch() int {
	return len(e.InputIDs)
}

// GenerationResult bundles generated texts with optional raw metadata
// from the underlying runner.
type GenerationResult struct {
	Texts    []string            `json:"texts"`
	Metadata *GenerationMetadata `json:"metadata,omitempty"`
}

// GenerationMetadata contains adapter-specific information about a
// generation call.
type GenerationMetadata struct {
	Model     string         `json:"model"`
	Timestamp time.Time      `json:"timestamp"`
	Raw       string         `json:"raw,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}
