// Package http registers the attribution HTTP API.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/google/uuid"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/registry"
	"github.com/ekisa-team/salience/service"
)

type (
	AttributeRequestDTO struct {
		ModelID string `json:"model_id" minLength:"1"`

		// Text and Texts are mutually exclusive: scalar in, scalar out;
		// batch in, batch out.
		Text  string   `json:"text,omitempty"`
		Texts []string `json:"texts,omitempty"`

		ReferenceTexts  []string       `json:"reference_texts,omitempty"`
		Method          string         `json:"method,omitempty"`
		OverrideDefault bool           `json:"override_default_method,omitempty"`
		StartPos        int            `json:"attr_pos_start,omitempty" minimum:"0"`
		EndPos          int            `json:"attr_pos_end,omitempty"   minimum:"0"`
		Params          map[string]any `json:"params,omitempty"`
	}

	AttributeResponseDTO struct {
		RequestID string                             `json:"request_id"`
		Result    *attribution.SequenceAttribution   `json:"result,omitempty"`
		Results   []*attribution.SequenceAttribution `json:"results,omitempty"`
	}
)

type (
	AttributeInput struct {
		Body AttributeRequestDTO
	}

	AttributeOutput struct {
		Body AttributeResponseDTO
	}

	MethodsOutput struct {
		Body struct {
			Methods []string `json:"methods"`
		}
	}

	ModelsOutput struct {
		Body struct {
			Models []string `json:"models"`
		}
	}

	StreamEvent struct {
		Index  int                              `json:"index"`
		Result *attribution.SequenceAttribution `json:"result"`
	}
)

// AttributionHandler handles HTTP requests for attribution.
type AttributionHandler struct {
	service *service.Attribution
}

// NewAttributionHandler creates a new AttributionHandler instance and
// registers its operations.
func NewAttributionHandler(api huma.API, service *service.Attribution) *AttributionHandler {
	h := &AttributionHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "attribute",
		Method:        "POST",
		Path:          "/attribute",
		Summary:       "Compute feature attribution for one or more texts",
		Tags:          []string{"attribution"},
		DefaultStatus: http.StatusOK,
	}, h.handleAttribute)

	sse.Register(api, huma.Operation{
		OperationID: "attribute-stream",
		Method:      "POST",
		Path:        "/attribute/stream",
		Summary:     "Compute feature attribution, streaming one event per sequence (SSE)",
		Tags:        []string{"attribution"},
	}, map[string]any{
		"message": StreamEvent{},
	}, h.handleAttributeStream)

	huma.Register(api, huma.Operation{
		OperationID: "list-methods",
		Method:      "GET",
		Path:        "/methods",
		Summary:     "List registered attribution methods",
		Tags:        []string{"attribution"},
	}, h.handleMethods)

	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      "GET",
		Path:        "/models",
		Summary:     "List ready models",
		Tags:        []string{"attribution"},
	}, h.handleModels)

	return h
}

func optionsFromDTO(dto AttributeRequestDTO) attribution.Options {
	return attribution.Options{
		ReferenceTexts:  dto.ReferenceTexts,
		MethodName:      dto.Method,
		OverrideDefault: dto.OverrideDefault,
		StartPos:        dto.StartPos,
		EndPos:          dto.EndPos,
		Params:          dto.Params,
	}
}

// mapError converts pipeline errors into HTTP status errors.
func mapError(err error) error {
	var mismatch *attribution.LengthMismatchError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return huma.Error404NotFound("model not found", err)
	case errors.Is(err, registry.ErrNotReady):
		return huma.Error503ServiceUnavailable("model not ready", err)
	case errors.Is(err, attribution.ErrMissingMethod), errors.Is(err, attribution.ErrUnknownMethod):
		return huma.Error400BadRequest("invalid attribution method", err)
	case errors.As(err, &mismatch):
		return huma.Error422UnprocessableEntity("texts and reference_texts length mismatch", err)
	default:
		return huma.Error500InternalServerError("attribution failed", err)
	}
}

// handleAttribute handles the attribute operation. A scalar text yields
// a scalar result; a texts batch yields a results list.
func (h *AttributionHandler) handleAttribute(ctx context.Context, input *AttributeInput) (*AttributeOutput, error) {
	requestID := uuid.NewString()
	opts := optionsFromDTO(input.Body)

	if input.Body.Text != "" && len(input.Body.Texts) > 0 {
		return nil, huma.Error400BadRequest("text and texts are mutually exclusive")
	}

	if input.Body.Text != "" {
		result, err := h.service.Attribute(ctx, input.Body.ModelID, input.Body.Text, opts)
		if err != nil {
			return nil, mapError(err)
		}
		return &AttributeOutput{Body: AttributeResponseDTO{
			RequestID: requestID,
			Result:    result,
		}}, nil
	}

	results, err := h.service.AttributeBatch(ctx, input.Body.ModelID, input.Body.Texts, opts)
	if err != nil {
		return nil, mapError(err)
	}
	return &AttributeOutput{Body: AttributeResponseDTO{
		RequestID: requestID,
		Results:   results,
	}}, nil
}

// handleAttributeStream attributes a batch and emits one SSE event per
// completed sequence.
func (h *AttributionHandler) handleAttributeStream(ctx context.Context, input *AttributeInput, send sse.Sender) {
	opts := optionsFromDTO(input.Body)

	texts := input.Body.Texts
	if input.Body.Text != "" {
		texts = []string{input.Body.Text}
	}

	// Sequences are attributed one at a time so results can stream out
	// as they complete. Reference texts are sliced alongside.
	for i, text := range texts {
		seqOpts := opts
		if len(opts.ReferenceTexts) == len(texts) {
			seqOpts.ReferenceTexts = opts.ReferenceTexts[i : i+1]
		}

		result, err := h.service.Attribute(ctx, input.Body.ModelID, text, seqOpts)
		if err != nil {
			_ = send.Data(struct {
				Error string `json:"error"`
			}{Error: err.Error()})
			return
		}

		if err := send.Data(StreamEvent{Index: i, Result: result}); err != nil {
			return
		}
	}
}

// handleMethods handles the list-methods operation.
func (h *AttributionHandler) handleMethods(ctx context.Context, _ *struct{}) (*MethodsOutput, error) {
	out := &MethodsOutput{}
	out.Body.Methods = h.service.Methods()
	return out, nil
}

// handleModels handles the list-models operation.
func (h *AttributionHandler) handleModels(ctx context.Context, _ *struct{}) (*ModelsOutput, error) {
	out := &ModelsOutput{}
	out.Body.Models = h.service.Models()
	return out, nil
}
