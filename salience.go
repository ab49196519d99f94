// Package salience provides feature attribution over pretrained
// sequence models: given a model and a text, it scores how much each
// input token contributed to the generated output.
//
// The top-level Load factory resolves a model name or path to the
// hub-backed adapter and binds it to an attribution method:
//
//	m, err := salience.Load(ctx, "org/model", "occlusion",
//		salience.WithRunnerBin("/usr/local/bin/llama-cli"))
//	result, err := m.Attribute(ctx, "Hello world", attribution.Options{})
package salience

import (
	"context"
	"os"
	"time"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/model/hub"

	_ "github.com/ekisa-team/salience/attribution/attnlens"
	_ "github.com/ekisa-team/salience/attribution/gradnorm"
	_ "github.com/ekisa-team/salience/attribution/occlusion"
)

// LoadOption configures the Load factory.
type LoadOption func(*hub.Config)

// WithRunnerBin sets the runner binary used for generation and scoring.
func WithRunnerBin(path string) LoadOption {
	return func(c *hub.Config) { c.BinPath = path }
}

// WithModelsDir sets the download cache directory.
func WithModelsDir(dir string) LoadOption {
	return func(c *hub.Config) { c.ModelsDir = dir }
}

// WithRevision pins a hub revision.
func WithRevision(rev string) LoadOption {
	return func(c *hub.Config) { c.Revision = rev }
}

// WithToken sets the hub access token.
func WithToken(token string) LoadOption {
	return func(c *hub.Config) { c.Token = token }
}

// WithTimeout bounds each runner invocation.
func WithTimeout(d time.Duration) LoadOption {
	return func(c *hub.Config) { c.Timeout = d }
}

// Load builds an attribution model for a model name or path. A path
// that exists on disk is used directly; anything else is treated as a
// hub repository id and downloaded. methodName may be empty, leaving
// the default method unset until one is supplied per call.
func Load(ctx context.Context, nameOrPath, methodName string, opts ...LoadOption) (*attribution.Model, error) {
	cfg := hub.Config{}
	if info, err := os.Stat(nameOrPath); err == nil && info.IsDir() {
		cfg.LocalPath = nameOrPath
	} else {
		cfg.Repo = nameOrPath
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	adapter, err := hub.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return attribution.New(ctx, adapter, methodName)
}
