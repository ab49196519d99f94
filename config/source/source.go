// Package source resolves model sources into local directories.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/ekisa-team/salience/config"
)

// Downloader materializes a configured model source under targetDir.
// It returns the local path, whether the model was already present, and
// an error.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(ctx context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHuggingFace:
		return &HuggingFaceDownloader{}, nil
	case config.SourceTypeLocal:
		return &LocalResolver{}, nil
	default:
		return nil, fmt.Errorf("source: unsupported source type: %s", sourceType)
	}
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("source: failed to create models directory: %w", err)
	}
	return nil
}

// LocalResolver resolves models already present on disk; nothing is
// copied or downloaded.
type LocalResolver struct{}

// Download validates the configured local path and returns it.
func (LocalResolver) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("source: failed to get model source: %w", err)
	}

	local, ok := src.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("source: invalid source type: %T", src)
	}

	info, err := os.Stat(local.Path)
	if err != nil {
		return "", false, fmt.Errorf("source: local model path not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("source: local model path is not a directory: %s", local.Path)
	}

	return local.Path, true, nil
}
