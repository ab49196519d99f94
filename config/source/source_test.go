package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/salience/config"
)

func TestGetDownloader(t *testing.T) {
	ctx := context.Background()

	d, err := GetDownloader(ctx, config.SourceTypeHuggingFace)
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceDownloader{}, d)

	d, err = GetDownloader(ctx, config.SourceTypeLocal)
	require.NoError(t, err)
	assert.IsType(t, &LocalResolver{}, d)

	_, err = GetDownloader(ctx, config.SourceType("ftp"))
	assert.ErrorContains(t, err, "unsupported source type")
}

func TestEnsureModelsDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "models")
	require.NoError(t, EnsureModelsDirectory(path))
	assert.DirExists(t, path)
}

func TestLocalResolver_ReturnsConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	mc := &config.ModelConfig{Source: config.SourceConfig{Local: &config.LocalSource{Path: dir}}}

	path, present, err := LocalResolver{}.Download(context.Background(), mc, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, dir, path)
	assert.True(t, present)
}

func TestLocalResolver_MissingPath(t *testing.T) {
	mc := &config.ModelConfig{Source: config.SourceConfig{Local: &config.LocalSource{
		Path: filepath.Join(t.TempDir(), "gone"),
	}}}

	_, _, err := LocalResolver{}.Download(context.Background(), mc, t.TempDir())
	assert.ErrorContains(t, err, "not accessible")
}

func TestLocalResolver_WrongSourceType(t *testing.T) {
	mc := &config.ModelConfig{}
	mc.SetHuggingFaceSource(config.HuggingFaceSource{Repo: "org/model"})

	_, _, err := LocalResolver{}.Download(context.Background(), mc, t.TempDir())
	assert.ErrorContains(t, err, "invalid source type")
}
