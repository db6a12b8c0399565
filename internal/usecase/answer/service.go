// Package answer produces answers grounded strictly in retrieved passages.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
)

const (
	passageSeparator = "\n\n---\n\n"

	// DefaultMaxContextChars caps the joined passages handed to the model.
	DefaultMaxContextChars = 10000
	// DefaultMaxTokens bounds the model output.
	DefaultMaxTokens = 600

	systemPrompt = "You are a careful assistant. " +
		"Answer ONLY using the provided context. " +
		"If the answer cannot be found in the context, respond with exactly: " + domain.NoAnswerSentinel + ". " +
		"Keep the answer concise and precise, **in English.**"

	userTemplate = "Question:\n%s\n\n" +
		"Context (Only refer to this content):\n%s\n\n" +
		"Requirements:\n" +
		"1) Answer using only the context provided;\n" +
		"2) Be brief and precise;\n" +
		"3) If the context does not contain the relevant information, output only: " + domain.NoAnswerSentinel + "\n"

	logPreview = 50
)

// Config controls prompt construction and the model call.
type Config struct {
	MaxTokens       int
	MaxContextChars int
	Timeout         time.Duration
}

// Answerer asks the model to answer from the supplied passages only.
type Answerer struct {
	gen    domain.Generator
	cfg    Config
	logger *zap.Logger
}

// New creates an Answerer. Zero config fields select the defaults.
func New(gen domain.Generator, cfg Config, logger *zap.Logger) *Answerer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	return &Answerer{gen: gen, cfg: cfg, logger: logger}
}

// Answer returns the model answer, or "" when there is no grounded answer:
// no passages (the model is not called), an empty reply, or a reply containing
// the sentinel. Model failures are returned as *domain.ModelError, unretried.
func (a *Answerer) Answer(ctx context.Context, question string, passages []string) (string, error) {
	if len(passages) == 0 {
		a.logger.Debug("No passages, skipping model call")
		return "", nil
	}

	contextText := strings.Join(passages, passageSeparator)
	if n := utf8.RuneCountInString(contextText); n > a.cfg.MaxContextChars {
		a.logger.Warn("Truncating context",
			zap.Int("chars", n),
			zap.Int("max_chars", a.cfg.MaxContextChars),
		)
		contextText = truncateRunes(contextText, a.cfg.MaxContextChars)
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	res, err := a.gen.Generate(ctx, domain.GenerateRequest{
		System:      systemPrompt,
		Prompt:      BuildPrompt(question, contextText),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	a.logger.Debug("Model raw answer", zap.String("preview", truncateRunes(text, logPreview)))

	if text == "" || strings.Contains(text, domain.NoAnswerSentinel) {
		return "", nil
	}
	return text, nil
}

// SystemPrompt returns the fixed grounding instruction.
func SystemPrompt() string { return systemPrompt }

// BuildPrompt renders the user message for a question and its context.
func BuildPrompt(question, contextText string) string {
	return fmt.Sprintf(userTemplate, question, contextText)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
