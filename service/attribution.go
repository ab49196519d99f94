// Package service exposes the attribution pipeline over the model
// registry to transport handlers.
package service

import (
	"context"
	"log/slog"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/registry"
)

// Attribution is a service abstraction over attribution-ready models.
type Attribution struct {
	manager *registry.Manager
}

// NewAttribution creates a new attribution service.
func NewAttribution(manager *registry.Manager) *Attribution {
	return &Attribution{manager: manager}
}

// resolve fetches a ready model instance by id.
func (s *Attribution) resolve(modelID string) (*registry.Instance, error) {
	instance, ok := s.manager.Registry().Get(modelID)
	if !ok {
		return nil, registry.ErrNotFound
	}
	if instance.Status() != registry.StatusReady || instance.Model == nil {
		return nil, registry.ErrNotReady
	}
	return instance, nil
}

// applyConfigParams fills in the model's configured method params when
// the caller supplied none.
func applyConfigParams(instance *registry.Instance, opts attribution.Options) attribution.Options {
	if opts.Params == nil && instance.Config != nil {
		opts.Params = instance.Config.Params
	}
	return opts
}

// Attribute computes attribution for a single text on the given model.
func (s *Attribution) Attribute(ctx context.Context, modelID, text string, opts attribution.Options) (*attribution.SequenceAttribution, error) {
	instance, err := s.resolve(modelID)
	if err != nil {
		return nil, err
	}

	result, err := instance.Model.Attribute(ctx, text, applyConfigParams(instance, opts))
	if err != nil {
		slog.Error("Attribution failed", "model_id", modelID, "error", err)
		return nil, err
	}
	return result, nil
}

// AttributeBatch computes attribution for a batch of texts on the given
// model, one result per input.
func (s *Attribution) AttributeBatch(ctx context.Context, modelID string, texts []string, opts attribution.Options) ([]*attribution.SequenceAttribution, error) {
	instance, err := s.resolve(modelID)
	if err != nil {
		return nil, err
	}

	results, err := instance.Model.AttributeBatch(ctx, texts, applyConfigParams(instance, opts))
	if err != nil {
		slog.Error("Batch attribution failed", "model_id", modelID, "error", err)
		return nil, err
	}
	return results, nil
}

// Models lists the ids of ready models.
func (s *Attribution) Models() []string {
	instances := s.manager.Registry().List()
	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		if instance.Status() == registry.StatusReady {
			ids = append(ids, instance.ID)
		}
	}
	return ids
}

// Methods lists the registered attribution method names.
func (s *Attribution) Methods() []string {
	return attribution.Methods()
}
