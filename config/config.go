package config

import (
	"errors"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
	// SourceTypeLocal represents a model directory already on disk.
	SourceTypeLocal SourceType = "local"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string                 `json:"version"           yaml:"version"`
	Storage StorageConfig          `json:"storage,omitempty" yaml:"storage,omitempty"`
	Models  map[string]ModelConfig `json:"models"            yaml:"models"`
	Service ServiceConfig          `json:"service"           yaml:"service"`
}

// StorageConfig holds configuration for model caching and the runner
// binary used for scoring and generation.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
	RunnerBin string `json:"runner_bin,omitempty" yaml:"runner_bin,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source SourceConfig   `json:"source"           yaml:"source"`
	Method string         `json:"method,omitempty" yaml:"method,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Tags   []string       `json:"tags,omitempty"   yaml:"tags,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
}

// ServiceConfig holds the attribution service assignment: which
// configured models are served and the method used when a model does
// not name its own.
type ServiceConfig struct {
	Models        []string `json:"models"                   yaml:"models"`
	DefaultMethod string   `json:"default_method,omitempty" yaml:"default_method,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// LocalSource represents a model directory already present on disk.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}
	if m.Source.Local != nil {
		return *m.Source.Local, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}
