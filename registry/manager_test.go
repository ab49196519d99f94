package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/config"
	"github.com/ekisa-team/salience/internal/envvar"
	"github.com/ekisa-team/salience/model"
)

type fakeAdapter struct {
	closed int
}

func (f *fakeAdapter) Setup(ctx context.Context) error { return nil }

func (f *fakeAdapter) Score(ctx context.Context, enc *model.BatchEncoding, targetIDs [][]int64) ([][]float64, error) {
	return nil, nil
}

func (f *fakeAdapter) Generate(ctx context.Context, enc *model.BatchEncoding, params map[string]any) (*model.GenerationResult, error) {
	return &model.GenerationResult{}, nil
}

func (f *fakeAdapter) Encode(ctx context.Context, texts []string, withBaseline bool) (*model.BatchEncoding, error) {
	return &model.BatchEncoding{}, nil
}

func (f *fakeAdapter) IDsToTokens(ids [][]int64, skipSpecial bool) [][]string { return nil }

func (f *fakeAdapter) TokensToIDs(tokens [][]string) [][]int64 { return nil }

func (f *fakeAdapter) Close() error {
	f.closed++
	return nil
}

type noopMethod struct {
	attribution.HookState
	name string
}

func (n *noopMethod) MethodName() string { return n.name }

func (n *noopMethod) AttributionArgs(params map[string]any) map[string]any { return nil }

func (n *noopMethod) PrepareAndAttribute(ctx context.Context, texts, refs []string, start, end int, args map[string]any) ([]*attribution.SequenceAttribution, error) {
	return nil, nil
}

func registerNoop(t *testing.T) string {
	t.Helper()

	name := fmt.Sprintf("noop-%s", t.Name())
	attribution.Register(name, func(m *attribution.Model) attribution.Method {
		return &noopMethod{name: name}
	})
	return name
}

func localModelConfig(t *testing.T, method string) config.ModelConfig {
	t.Helper()

	return config.ModelConfig{
		Source: config.SourceConfig{Local: &config.LocalSource{Path: t.TempDir()}},
		Method: method,
	}
}

func TestLoadFromConfig_BindsReadyInstance(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	method := registerNoop(t)
	mc := localModelConfig(t, method)
	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": mc},
		Service: config.ServiceConfig{Models: []string{"m1"}},
	}

	adapter := &fakeAdapter{}
	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return adapter, nil
	})

	require.NoError(t, manager.LoadFromConfig(context.Background(), cfg))

	instance, ok := manager.Registry().Get("m1")
	require.True(t, ok)
	assert.Equal(t, StatusReady, instance.Status())
	assert.NotNil(t, instance.Model)
	assert.Equal(t, mc.Source.Local.Path, instance.Path)
}

func TestLoadFromConfig_FallsBackToServiceDefaultMethod(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	method := registerNoop(t)
	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": localModelConfig(t, "")},
		Service: config.ServiceConfig{Models: []string{"m1"}, DefaultMethod: method},
	}

	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return &fakeAdapter{}, nil
	})

	require.NoError(t, manager.LoadFromConfig(context.Background(), cfg))

	instance, ok := manager.Registry().Get("m1")
	require.True(t, ok)
	assert.Equal(t, StatusReady, instance.Status())
}

func TestLoadFromConfig_UnknownMethodMarksFailed(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": localModelConfig(t, "no-such-method")},
		Service: config.ServiceConfig{Models: []string{"m1"}},
	}

	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return &fakeAdapter{}, nil
	})

	err := manager.LoadFromConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, attribution.ErrUnknownMethod)

	instance, ok := manager.Registry().Get("m1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, instance.Status())
}

func TestLoadFromConfig_FactoryFailureMarksFailed(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": localModelConfig(t, "")},
		Service: config.ServiceConfig{Models: []string{"m1"}},
	}

	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return nil, assert.AnError
	})

	err := manager.LoadFromConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, assert.AnError)

	instance, ok := manager.Registry().Get("m1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, instance.Status())
}

func TestLoadFromConfig_SkipsUnknownServiceModel(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{},
		Service: config.ServiceConfig{Models: []string{"ghost"}},
	}

	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return &fakeAdapter{}, nil
	})

	require.NoError(t, manager.LoadFromConfig(context.Background(), cfg))
	assert.Empty(t, manager.Registry().List())
}

func TestLoadFromConfig_DropsRemovedInstances(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	method := registerNoop(t)
	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": localModelConfig(t, method)},
		Service: config.ServiceConfig{Models: []string{"m1"}},
	}

	adapter := &fakeAdapter{}
	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return adapter, nil
	})

	require.NoError(t, manager.LoadFromConfig(context.Background(), cfg))
	require.Len(t, manager.Registry().List(), 1)

	cfg.Service.Models = nil
	require.NoError(t, manager.LoadFromConfig(context.Background(), cfg))

	assert.Empty(t, manager.Registry().List())
	assert.Equal(t, 1, adapter.closed)
}

func TestLoadFromConfig_NoSourceConfigured(t *testing.T) {
	t.Setenv(envvar.SalienceModelsPath, t.TempDir())

	cfg := &config.Config{
		Version: "1",
		Models:  map[string]config.ModelConfig{"m1": {}},
		Service: config.ServiceConfig{Models: []string{"m1"}},
	}

	manager := NewManagerWithFactory(func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
		return &fakeAdapter{}, nil
	})

	err := manager.LoadFromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to get model source")
}
