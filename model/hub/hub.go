// Package hub implements the model.Adapter backed by a hub-downloaded
// model directory and a local runner binary (llama.cpp-style CLI). All
// numeric computation happens in the runner; this adapter only builds
// arguments and parses output.
package hub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ekisa-team/salience/config"
	"github.com/ekisa-team/salience/config/source"
	"github.com/ekisa-team/salience/internal/execx"
	"github.com/ekisa-team/salience/mapsafe"
	"github.com/ekisa-team/salience/model"
	"github.com/ekisa-team/salience/tokenizer"
)

// Config describes how to construct a hub adapter.
type Config struct {
	// Repo is the hub repository id, e.g. "org/model". Ignored when
	// LocalPath is set.
	Repo     string
	Revision string
	Token    string

	// LocalPath points at a model directory already on disk; when set no
	// download happens.
	LocalPath string

	// ModelsDir is the download cache directory. Empty means the
	// platform default.
	ModelsDir string

	// BinPath is the runner binary.
	BinPath string

	// Timeout bounds each runner invocation. Zero means one minute.
	Timeout time.Duration
}

// Adapter runs generation and scoring through a runner binary over a
// local model directory.
type Adapter struct {
	cfg       Config
	modelDir  string
	modelPath string
	tok       *tokenizer.Tokenizer
	executor  *execx.Executor

	setupOnce sync.Once
	setupErr  error
}

var _ model.Adapter = (*Adapter)(nil)
var _ model.AttentionScorer = (*Adapter)(nil)

// New resolves the model directory (downloading it when needed), loads
// the tokenizer and prepares the runner executor.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Minute
	}

	dir, err := resolveModelDir(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("hub: failed to load tokenizer from %s: %w", dir, err)
	}

	executor, err := execx.NewExecutor(cfg.BinPath, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}

	modelPath, err := resolveModelPath(dir)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		cfg:       cfg,
		modelDir:  dir,
		modelPath: modelPath,
		tok:       tok,
		executor:  executor,
	}, nil
}

// NewWithExecutor is used by tests to inject a fake runner.
func NewWithExecutor(tok *tokenizer.Tokenizer, executor *execx.Executor, modelPath string) *Adapter {
	return &Adapter{
		tok:       tok,
		executor:  executor,
		modelPath: modelPath,
	}
}

// resolveModelDir returns the local model directory, downloading from
// the hub when no local path is configured.
func resolveModelDir(ctx context.Context, cfg Config) (string, error) {
	if cfg.LocalPath != "" {
		info, err := os.Stat(cfg.LocalPath)
		if err != nil {
			return "", fmt.Errorf("hub: local model path not accessible: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("hub: local model path is not a directory: %s", cfg.LocalPath)
		}
		return cfg.LocalPath, nil
	}

	modelsDir := cfg.ModelsDir
	if modelsDir == "" {
		modelsDir = config.DefaultModelsPath()
	}
	if err := source.EnsureModelsDirectory(modelsDir); err != nil {
		return "", err
	}

	mc := &config.ModelConfig{}
	mc.SetHuggingFaceSource(config.HuggingFaceSource{
		Repo:     cfg.Repo,
		Revision: cfg.Revision,
		Token:    cfg.Token,
	})

	downloader := &source.HuggingFaceDownloader{}
	dir, _, err := downloader.Download(ctx, mc, modelsDir)
	if err != nil {
		return "", fmt.Errorf("hub: failed to download %s: %w", cfg.Repo, err)
	}
	return dir, nil
}

// resolveModelPath locates the weights file inside the model directory.
func resolveModelPath(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gguf"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("hub: no weights file (*.gguf) found in %s", dir)
	}
	return matches[0], nil
}

// Setup validates the runner and model paths. Idempotent.
func (a *Adapter) Setup(ctx context.Context) error {
	a.setupOnce.Do(func() {
		if a.modelPath == "" {
			a.setupErr = fmt.Errorf("hub: adapter has no model path")
			return
		}
		if _, err := os.Stat(a.modelPath); err != nil {
			a.setupErr = fmt.Errorf("hub: model weights not accessible: %w", err)
		}
	})
	return a.setupErr
}

// Tokenizer exposes the adapter's tokenizer.
func (a *Adapter) Tokenizer() *tokenizer.Tokenizer { return a.tok }

// ModelPath returns the resolved weights path.
func (a *Adapter) ModelPath() string { return a.modelPath }

// Encode implements model.Adapter.
func (a *Adapter) Encode(ctx context.Context, texts []string, withBaseline bool) (*model.BatchEncoding, error) {
	inputIDs, mask := a.tok.EncodeBatch(texts)

	enc := &model.BatchEncoding{
		InputIDs:      inputIDs,
		AttentionMask: mask,
	}

	if withBaseline {
		enc.BaselineIDs = make([][]int64, len(inputIDs))
		for i := range inputIDs {
			row := make([]int64, len(inputIDs[i]))
			for j := range row {
				row[j] = a.tok.PadID()
			}
			enc.BaselineIDs[i] = row
		}
	}
	return enc, nil
}

// IDsToTokens implements model.Adapter.
func (a *Adapter) IDsToTokens(ids [][]int64, skipSpecial bool) [][]string {
	tokens := make([][]string, len(ids))
	for i := range ids {
		tokens[i] = a.tok.IDsToTokens(ids[i], skipSpecial)
	}
	return tokens
}

// TokensToIDs implements model.Adapter.
func (a *Adapter) TokensToIDs(tokens [][]string) [][]int64 {
	ids := make([][]int64, len(tokens))
	for i := range tokens {
		ids[i] = a.tok.TokensToIDs(tokens[i])
	}
	return ids
}

// Close implements model.Adapter.
func (a *Adapter) Close() error { return nil }

// buildGenerateArgs builds runner command-line arguments for a
// generation call.
func (a *Adapter) buildGenerateArgs(prompt string, params map[string]any) []string {
	args := []string{"--model", a.modelPath}

	if v := mapsafe.Get(params, "system_prompt", ""); v != "" {
		args = append(args, "--system-prompt", v)
	}
	args = append(args, "-n", fmt.Sprintf("%d", mapsafe.Get(params, "n_predict", 128)))
	if _, ok := params["temperature"]; ok {
		args = append(args, "--temp", fmt.Sprintf("%g", mapsafe.Get(params, "temperature", 0.8)))
	}
	if v := mapsafe.Get(params, "top_p", 0.0); v > 0 {
		args = append(args, "--top-p", fmt.Sprintf("%g", v))
	}
	if v := mapsafe.Get(params, "seed", 0); v != 0 {
		args = append(args, "--seed", fmt.Sprintf("%d", v))
	}

	args = append(args, "--prompt", prompt)
	return args
}
