// Package bedrock generates answers with Anthropic models hosted on Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	contentTypeJSON  = "application/json"
	provider         = "bedrock"
)

// Compile-time check: Generator implements domain.Generator.
var _ domain.Generator = (*Generator)(nil)

// API is the subset of the Bedrock runtime client used by Generator.
type API interface {
	InvokeModel(
		ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

// Generator invokes a Bedrock model with the Anthropic messages body.
type Generator struct {
	api    API
	model  string
	logger *zap.Logger
}

// NewGenerator creates a generator from a loaded AWS config.
func NewGenerator(awsCfg aws.Config, model string, logger *zap.Logger) *Generator {
	return NewGeneratorWithAPI(bedrockruntime.NewFromConfig(awsCfg), model, logger)
}

// NewGeneratorWithAPI creates a generator over an arbitrary client implementation.
func NewGeneratorWithAPI(api API, model string, logger *zap.Logger) *Generator {
	return &Generator{api: api, model: model, logger: logger}
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float32   `json:"temperature"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

type invokeResponse struct {
	Content []textBlock `json:"content"`
	// Completion is the legacy text-completions field.
	Completion string `json:"completion"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate implements domain.Generator with transport-level metrics.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.System,
		Messages: []message{{
			Role:    "user",
			Content: []textBlock{{Type: "text", Text: req.Prompt}},
		}},
	})
	if err != nil {
		return domain.GenerateResult{}, domain.NewModelError(domain.ErrModelInvalidRequest, g.model, err.Error())
	}

	start := time.Now()
	out, err := g.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.model),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	duration := time.Since(start)

	if err != nil {
		classified := g.classify(err)
		metrics.ModelRequestsTotal.WithLabelValues(provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(provider, g.model, errorType(classified)).Inc()
		return domain.GenerateResult{}, classified
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(provider, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(provider, g.model, "decode").Inc()
		return domain.GenerateResult{}, domain.NewModelError(
			domain.ErrModelUnavailable, g.model, fmt.Sprintf("decode response: %v", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(resp.Content) == 0 {
		text.WriteString(resp.Completion)
	}

	metrics.ModelRequestsTotal.WithLabelValues(provider, g.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(provider, g.model).Observe(duration.Seconds())
	metrics.ModelTokensTotal.WithLabelValues(provider, g.model, "input").Add(float64(resp.Usage.InputTokens))
	metrics.ModelTokensTotal.WithLabelValues(provider, g.model, "output").Add(float64(resp.Usage.OutputTokens))

	return domain.GenerateResult{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// classify maps SDK errors to a *domain.ModelError by service error code.
func (g *Generator) classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return domain.NewModelError(domain.ErrModelUnavailable, g.model,
			fmt.Sprintf("Bedrock invocation failed: %v", err))
	}

	code := apiErr.ErrorCode()
	detail := fmt.Sprintf("Bedrock API Error: %s: %s", code, apiErr.ErrorMessage())

	switch code {
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		g.logger.Error("Bedrock access denied, check IAM permissions for bedrock:InvokeModel and model access",
			zap.String("model", g.model), zap.String("code", code))
		return domain.NewModelError(domain.ErrModelPermission, g.model, detail)
	case "ValidationException", "ResourceNotFoundException":
		g.logger.Error("Bedrock rejected the request, check the body format and model id",
			zap.String("model", g.model), zap.String("code", code))
		return domain.NewModelError(domain.ErrModelInvalidRequest, g.model, detail)
	default:
		return domain.NewModelError(domain.ErrModelUnavailable, g.model, detail)
	}
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
