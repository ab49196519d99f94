package hub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ekisa-team/salience/model"
)

// Generate implements model.Adapter. One runner invocation per
// sequence; the prompt is the decoded input.
func (a *Adapter) Generate(ctx context.Context, enc *model.BatchEncoding, params map[string]any) (*model.GenerationResult, error) {
	if err := a.Setup(ctx); err != nil {
		return nil, err
	}

	texts := make([]string, enc.Batch())
	var raw strings.Builder
	for i := range enc.InputIDs {
		prompt := a.tok.Decode(enc.InputIDs[i], true)
		args := a.buildGenerateArgs(prompt, params)

		stdout, stderr, err := a.executor.Execute(ctx, args, nil)
		if err != nil {
			return nil, fmt.Errorf("hub: generation failed: %w\nstderr: %s", err, stderr)
		}

		texts[i] = parseGeneration(string(stdout), prompt)
		raw.Write(stdout)
	}

	return &model.GenerationResult{
		Texts: texts,
		Metadata: &model.GenerationMetadata{
			Model:     a.modelPath,
			Timestamp: time.Now(),
			Raw:       raw.String(),
		},
	}, nil
}

// parseGeneration strips a leading prompt echo and surrounding
// whitespace from runner output.
func parseGeneration(out, prompt string) string {
	out = strings.TrimSpace(out)
	if prompt != "" {
		out = strings.TrimSpace(strings.TrimPrefix(out, prompt))
	}
	return out
}

// scoreLine is one JSONL record of the runner's --score output.
type scoreLine struct {
	TokenID int64   `json:"token_id"`
	LogProb float64 `json:"logprob"`
}

// Score implements model.Adapter. The runner is invoked in score mode
// once per sequence and emits one JSONL record per target token.
func (a *Adapter) Score(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][]float64, error) {
	if err := a.Setup(ctx); err != nil {
		return nil, err
	}
	if len(targetIDs) != enc.Batch() {
		return nil, fmt.Errorf("hub: target batch %d does not match input batch %d", len(targetIDs), enc.Batch())
	}

	scores := make([][]float64, enc.Batch())
	for i := range enc.InputIDs {
		prompt := a.tok.Decode(enc.InputIDs[i], true)
		target := a.tok.Decode(targetIDs[i], true)

		args := []string{
			"--model", a.modelPath,
			"--score",
			"--prompt", prompt,
			"--target", target,
		}

		stdout, stderr, err := a.executor.Execute(ctx, args, nil)
		if err != nil {
			return nil, fmt.Errorf("hub: scoring failed: %w\nstderr: %s", err, stderr)
		}

		seq, err := parseScores(stdout)
		if err != nil {
			return nil, err
		}
		scores[i] = seq
	}
	return scores, nil
}

// parseScores reads per-token logprobs from JSONL runner output.
// Non-JSON lines (runner banners, timing info) are skipped.
func parseScores(out []byte) ([]float64, error) {
	var scores []float64
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var rec scoreLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("hub: invalid score record %q: %w", line, err)
		}
		scores = append(scores, rec.LogProb)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hub: failed to read score output: %w", err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("hub: runner produced no score records")
	}
	return scores, nil
}

// attnDump is the JSON shape of the runner's --dump-attn output: one
// [step][source] matrix per layer.
type attnDump struct {
	Layers [][][]float64 `json:"layers"`
}

// Attention implements model.AttentionScorer.
func (a *Adapter) Attention(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][][][]float64, error) {
	if err := a.Setup(ctx); err != nil {
		return nil, err
	}

	weights := make([][][][]float64, enc.Batch())
	for i := range enc.InputIDs {
		prompt := a.tok.Decode(enc.InputIDs[i], true)
		target := a.tok.Decode(targetIDs[i], true)

		args := []string{
			"--model", a.modelPath,
			"--dump-attn",
			"--prompt", prompt,
			"--target", target,
		}

		stdout, stderr, err := a.executor.Execute(ctx, args, nil)
		if err != nil {
			return nil, fmt.Errorf("hub: attention dump failed: %w\nstderr: %s", err, stderr)
		}

		var dump attnDump
		if err := json.Unmarshal(bytes.TrimSpace(stdout), &dump); err != nil {
			return nil, fmt.Errorf("hub: invalid attention dump: %w", err)
		}
		if len(dump.Layers) == 0 {
			return nil, fmt.Errorf("hub: runner produced no attention layers")
		}
		weights[i] = dump.Layers
	}
	return weights, nil
}
