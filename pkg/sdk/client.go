package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/ngram"
	"github.com/kailas-cloud/recall/internal/storage/s3"
	answeruc "github.com/kailas-cloud/recall/internal/usecase/answer"
	"github.com/kailas-cloud/recall/internal/usecase/corpus"
	"github.com/kailas-cloud/recall/internal/usecase/index"
	queryuc "github.com/kailas-cloud/recall/internal/usecase/query"
)

const (
	defaultBuildTimeout     = 5 * time.Minute
	defaultFetchConcurrency = 8
)

// queryUseCase is the internal interface for question answering.
type queryUseCase interface {
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]domain.Passage, error)
	Reload(ctx context.Context) (queryuc.Status, error)
	Status() queryuc.Status
}

// Client is the recall SDK entry point.
type Client struct {
	query queryUseCase
	obs   *observer
}

// New creates a Client. The index starts empty; call Reload to build it.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		chunkSize:    chunker.DefaultSize,
		chunkOverlap: chunker.DefaultOverlap,
		ngramMin:     3,
		ngramMax:     5,
		minScore:     index.DefaultMinScore,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	loader, err := buildLoader(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(loader, cfg, obs), nil
}

func buildLoader(cfg *clientConfig) (index.Loader, error) {
	switch {
	case cfg.s3 != nil:
		store, err := s3.NewStore(cfg.s3.aws, s3.Config{Bucket: cfg.s3.bucket})
		if err != nil {
			return nil, fmt.Errorf("recall: create s3 store: %w", err)
		}
		return corpus.New(store, cfg.s3.prefixes, defaultFetchConcurrency, zap.NewNop()), nil
	case cfg.source != nil:
		return &sourceLoader{src: cfg.source}, nil
	default:
		return nil, errors.New("recall: document source required (use WithDocuments, WithSource or WithS3)")
	}
}

func wireClient(loader index.Loader, cfg *clientConfig, obs *observer) *Client {
	nop := zap.NewNop()

	var gen domain.Generator = noopGenerator{}
	if cfg.generator != nil {
		gen = &generatorAdapter{inner: cfg.generator}
	}

	builder := index.NewBuilder(
		loader,
		chunker.New(cfg.chunkSize, cfg.chunkOverlap),
		ngram.New(cfg.ngramMin, cfg.ngramMax),
		defaultBuildTimeout,
		nop,
	)
	answerer := answeruc.New(gen, answeruc.Config{MaxTokens: cfg.maxTokens}, nop)
	query := queryuc.New(builder, index.NewRetriever(cfg.minScore), answerer, queryuc.Config{
		MaxTopK:     cfg.maxTopK,
		MaxPassages: cfg.maxPassages,
	})

	return &Client{query: query, obs: obs}
}

// Reload rebuilds the index from the source. On failure the previous index stays installed.
func (c *Client) Reload(ctx context.Context) (st Status, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err, "chunks", st.Chunks) }()

	s, err := c.query.Reload(ctx)
	st = statusFromUC(s)
	if err != nil {
		return st, fmt.Errorf("reload: %w", err)
	}
	c.obs.indexed(st.Chunks)
	return st, nil
}

// Status reports the installed index.
func (c *Client) Status() Status {
	return statusFromUC(c.query.Status())
}

// Ask answers question from the topK most similar passages (clamped to [1, 20] by default).
// A model failure is reported in the answer text, not as an error.
func (c *Client) Ask(ctx context.Context, question string, topK int) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err, "passages", len(ans.Passages)) }()

	a, err := c.query.Ask(ctx, question, topK)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: a.Answer, Passages: passagesFromDomain(a.Passages)}, nil
}

// Search returns the topK passages most similar to query without calling the model.
func (c *Client) Search(ctx context.Context, query string, topK int) (passages []Passage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err, "passages", len(passages)) }()

	p, err := c.query.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return passagesFromDomain(p), nil
}

func passagesFromDomain(in []domain.Passage) []Passage {
	out := make([]Passage, len(in))
	for i, p := range in {
		out[i] = Passage{File: p.File, ChunkID: p.ChunkID, Score: p.Score, Text: p.Text}
	}
	return out
}

func statusFromUC(s queryuc.Status) Status {
	return Status{
		Ready:      s.Ready,
		Chunks:     s.Chunks,
		Files:      s.Files,
		Rows:       s.Rows,
		Cols:       s.Cols,
		SnapshotID: s.SnapshotID,
		BuiltAt:    s.BuiltAt,
	}
}
