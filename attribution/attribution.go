// Package attribution binds a wrapped generative model to pluggable
// feature-attribution methods and orchestrates the generate-then-score
// pipeline that explains why the model produced a given output.
package attribution

import (
	"context"
	"fmt"
	"maps"

	"github.com/ekisa-team/salience/model"
)

// Options control a single attribution call.
type Options struct {
	// ReferenceTexts are the output sequences to attribute against. When
	// empty the model generates them itself.
	ReferenceTexts []string

	// MethodName selects the attribution method for this call. Empty
	// means the model's default method.
	MethodName string

	// OverrideDefault makes MethodName the new stored default instead of
	// a one-off instance.
	OverrideDefault bool

	// StartPos is the first output step to attribute (1-based). Values
	// below 1 mean 1.
	StartPos int

	// EndPos is the last output step to attribute; 0 means the full
	// sequence.
	EndPos int

	// GenerationParams are forwarded to the adapter when references are
	// generated.
	GenerationParams map[string]any

	// Params is a generic option bag the resolved method extracts its
	// own arguments from.
	Params map[string]any

	// AttributionParams are passed to the method as-is, taking
	// precedence over extracted Params.
	AttributionParams map[string]any
}

// Model binds a model adapter to a current default attribution method.
// A Model instance is not safe for concurrent attribution calls: the
// hook/unhook protocol on the wrapped model is not reentrant.
type Model struct {
	adapter model.Adapter
	method  Method
}

// New wraps an adapter and resolves the default attribution method.
// methodName may be empty; the default then stays unset until a method
// is supplied on a later call. Setup is run as part of construction.
func New(ctx context.Context, adapter model.Adapter, methodName string) (*Model, error) {
	m := &Model{adapter: adapter}
	if methodName != "" {
		if _, err := m.ResolveMethod(methodName, false); err != nil {
			return nil, err
		}
	}
	if err := m.Setup(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Setup prepares the wrapped model for attribution. Idempotent.
func (m *Model) Setup(ctx context.Context) error {
	if err := m.adapter.Setup(ctx); err != nil {
		return fmt.Errorf("attribution: model setup failed: %w", err)
	}
	return nil
}

// Adapter exposes the wrapped model adapter to attribution methods.
func (m *Model) Adapter() model.Adapter { return m.adapter }

// DefaultMethod returns the stored default method, or nil when none is
// configured.
func (m *Model) DefaultMethod() Method { return m.method }

// Close releases the wrapped adapter.
func (m *Model) Close() error {
	if m.method != nil {
		if err := m.method.Unhook(); err != nil {
			return err
		}
	}
	return m.adapter.Close()
}

// ResolveMethod resolves which attribution method to use.
//
//   - Empty name with no default stored returns ErrMissingMethod.
//   - Empty name with a default stored returns the default.
//   - A name with no default stored makes the named method the default.
//   - A name with a default stored and overrideDefault set unhooks the
//     old default and replaces it.
//   - A name with a default stored and overrideDefault unset returns a
//     transient instance; the default is left hooked up and unchanged.
func (m *Model) ResolveMethod(name string, overrideDefault bool) (Method, error) {
	if name == "" {
		if m.method == nil {
			return nil, ErrMissingMethod
		}
		return m.method, nil
	}

	if m.method != nil && !overrideDefault {
		return LoadMethod(name, m)
	}

	if m.method != nil {
		if err := m.method.Unhook(); err != nil {
			return nil, fmt.Errorf("attribution: failed to unhook %s: %w", m.method.MethodName(), err)
		}
	}

	method, err := LoadMethod(name, m)
	if err != nil {
		return nil, err
	}
	m.method = method
	return method, nil
}

// formatInputTexts validates that reference texts, when given, match
// the input texts in length.
func formatInputTexts(texts, refs []string) error {
	if len(refs) > 0 && len(texts) != len(refs) {
		return &LengthMismatchError{InputLen: len(texts), ReferenceLen: len(refs)}
	}
	return nil
}

// Attribute computes feature attribution for a single text and returns
// a single result.
func (m *Model) Attribute(ctx context.Context, text string, opts Options) (*SequenceAttribution, error) {
	results, err := m.AttributeBatch(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// AttributeBatch computes feature attribution for a batch of texts and
// returns one result per input. An empty batch returns an empty result
// list without touching the model.
func (m *Model) AttributeBatch(ctx context.Context, texts []string, opts Options) ([]*SequenceAttribution, error) {
	if len(texts) == 0 {
		return []*SequenceAttribution{}, nil
	}

	refs := opts.ReferenceTexts
	if err := formatInputTexts(texts, refs); err != nil {
		return nil, err
	}

	method, err := m.ResolveMethod(opts.MethodName, opts.OverrideDefault)
	if err != nil {
		return nil, err
	}

	if len(refs) == 0 {
		refs, err = m.generateReferences(ctx, texts, opts.GenerationParams)
		if err != nil {
			return nil, err
		}
	}

	args := method.AttributionArgs(opts.Params)
	if args == nil {
		args = make(map[string]any)
	}
	maps.Copy(args, opts.AttributionParams)

	start := opts.StartPos
	if start < 1 {
		start = 1
	}

	results, err := method.PrepareAndAttribute(ctx, texts, refs, start, opts.EndPos, args)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// generateReferences encodes the inputs with a baseline and lets the
// model generate the reference outputs. Generation always runs with the
// current method unhooked so no instrumentation leaks into the forward
// pass.
func (m *Model) generateReferences(ctx context.Context, texts []string, params map[string]any) ([]string, error) {
	if m.method != nil {
		if err := m.method.Unhook(); err != nil {
			return nil, fmt.Errorf("attribution: failed to unhook before generation: %w", err)
		}
	}

	enc, err := m.adapter.Encode(ctx, texts, true)
	if err != nil {
		return nil, fmt.Errorf("attribution: failed to encode texts: %w", err)
	}

	result, err := m.adapter.Generate(ctx, enc, params)
	if err != nil {
		return nil, fmt.Errorf("attribution: reference generation failed: %w", err)
	}
	return result.Texts, nil
}
