package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/config"
	"github.com/ekisa-team/salience/config/source"
	"github.com/ekisa-team/salience/internal/envvar"
	"github.com/ekisa-team/salience/internal/xfs"
	"github.com/ekisa-team/salience/model"
	"github.com/ekisa-team/salience/model/hub"
)

// AdapterFactory builds a model adapter for a resolved model directory.
// Swappable in tests.
type AdapterFactory func(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error)

// Manager orchestrates model lifecycle from configuration.
type Manager struct {
	registry *Registry
	factory  AdapterFactory
	mu       sync.RWMutex
}

// NewManager creates a new Manager using the hub adapter factory.
func NewManager() *Manager {
	return &Manager{factory: hubAdapterFactory}
}

// NewManagerWithFactory creates a Manager with a custom adapter factory.
func NewManagerWithFactory(factory AdapterFactory) *Manager {
	return &Manager{factory: factory}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// LoadFromConfig loads the models assigned to the service and updates
// the registry, dropping instances no longer in the config.
func (m *Manager) LoadFromConfig(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry == nil {
		m.registry = NewRegistry()
	}

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("registry: failed to prepare models directory %s: %w", modelsPath, err)
	}

	loadedKeys := make(map[string]bool)
	for _, modelID := range cfg.Service.Models {
		modelConfig, ok := cfg.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		modelSource, err := modelConfig.GetSource()
		if err != nil {
			return fmt.Errorf("registry: failed to get model source for %s: %w", modelID, err)
		}

		downloader, err := source.GetDownloader(ctx, modelSource.Type())
		if err != nil {
			return fmt.Errorf("registry: failed to get downloader for %s: %w", modelID, err)
		}

		downloadPath, _, err := downloader.Download(ctx, &modelConfig, modelsPath)
		if err != nil {
			return fmt.Errorf("registry: failed to download model %s into %s: %w", modelID, modelsPath, err)
		}

		instance := NewInstance(&modelConfig, modelID, downloadPath)
		m.registry.Set(instance)
		loadedKeys[modelID] = true

		adapter, err := m.factory(ctx, cfg, &modelConfig, downloadPath)
		if err != nil {
			instance.SetStatus(StatusFailed)
			return fmt.Errorf("registry: failed to build adapter for %s: %w", modelID, err)
		}

		methodName := modelConfig.Method
		if methodName == "" {
			methodName = cfg.Service.DefaultMethod
		}

		am, err := attribution.New(ctx, adapter, methodName)
		if err != nil {
			instance.SetStatus(StatusFailed)
			return fmt.Errorf("registry: failed to bind attribution model for %s: %w", modelID, err)
		}

		instance.Model = am
		instance.SetStatus(StatusReady)
		slog.Info("Model loaded into registry", "model_id", modelID, "path", downloadPath, "method", methodName)
	}

	// Drop instances removed from the config.
	for _, instance := range m.registry.List() {
		if !loadedKeys[instance.ID] {
			if instance.Model != nil {
				if err := instance.Model.Close(); err != nil {
					slog.Error("Failed to close model", "model_id", instance.ID, "error", err)
				}
			}
			m.registry.Delete(instance.ID)
			slog.Info("Model unloaded", "model_id", instance.ID)
		}
	}

	return nil
}

// hubAdapterFactory constructs the default hub adapter over an already
// resolved model directory.
func hubAdapterFactory(ctx context.Context, cfg *config.Config, mc *config.ModelConfig, dir string) (model.Adapter, error) {
	return hub.New(ctx, hub.Config{
		LocalPath: dir,
		BinPath:   xfs.ExpandTilde(cfg.Storage.RunnerBin),
	})
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. SALIENCE_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.SalienceModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
