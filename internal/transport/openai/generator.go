package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Compile-time check: Generator implements domain.Generator.
var _ domain.Generator = (*Generator)(nil)

// Generator answers prompts through an OpenAI-compatible chat completions API.
type Generator struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	User     string
	Provider string
	Logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generator.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Generator{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Generate implements domain.Generator with transport-level metrics.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// the client drops a zero temperature (omitempty), which means "server default"
		temperature = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		User:        g.user,
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		classified := g.classify(err)
		metrics.ModelRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(g.provider, g.model, errorType(classified)).Inc()
		return domain.GenerateResult{}, classified
	}

	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(g.provider, g.model, "empty_response").Inc()
		return domain.GenerateResult{}, domain.NewModelError(domain.ErrModelUnavailable, g.model, "empty choices in response")
	}

	metrics.ModelRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	metrics.ModelTokensTotal.WithLabelValues(g.provider, g.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.ModelTokensTotal.WithLabelValues(g.provider, g.model, "output").Add(float64(resp.Usage.CompletionTokens))

	return domain.GenerateResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classify maps client errors to a *domain.ModelError by HTTP status.
func (g *Generator) classify(err error) error {
	status := 0
	detail := err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		detail = fmt.Sprintf("API error %d: %s", status, apiErr.Message)
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		body := extractDetail(reqErr.Body)
		if body == "" {
			body = string(reqErr.Body)
		}
		detail = fmt.Sprintf("API error %d: %s", status, body)
	}

	kind := domain.ErrModelUnavailable
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrModelPermission
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		kind = domain.ErrModelInvalidRequest
	}
	return domain.NewModelError(kind, g.model, detail)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelPermission):
		return "permission"
	case errors.Is(err, domain.ErrModelInvalidRequest):
		return "invalid_request"
	default:
		return "unavailable"
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
