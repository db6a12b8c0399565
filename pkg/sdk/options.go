package recall

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type s3Source struct {
	aws      aws.Config
	bucket   string
	prefixes []string
}

type clientConfig struct {
	source Source
	s3     *s3Source

	generator Generator

	chunkSize    int
	chunkOverlap int
	ngramMin     int
	ngramMax     int
	minScore     float64
	maxTopK      int
	maxPassages  int
	maxTokens    int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithDocuments indexes a fixed list of documents.
func WithDocuments(docs ...Document) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = staticSource(docs)
		c.s3 = nil
	})
}

// WithSource indexes whatever src returns on each Reload.
func WithSource(src Source) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = src
		c.s3 = nil
	})
}

// WithS3 indexes the .txt objects under prefixes in bucket.
func WithS3(cfg aws.Config, bucket string, prefixes ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.s3 = &s3Source{aws: cfg, bucket: bucket, prefixes: prefixes}
		c.source = nil
	})
}

// WithGenerator sets the language model used by Ask.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithChunking sets the chunk window and overlap in characters.
// Defaults: 800 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithNgramRange sets the character n-gram lengths. Default: 3 to 5.
func WithNgramRange(minN, maxN int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ngramMin = minN
		c.ngramMax = maxN
	})
}

// WithMinScore sets the similarity a passage must exceed. Default: 0.01.
func WithMinScore(score float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.minScore = score
	})
}

// WithLimits bounds retrieval and generation. Zero keeps a default
// (top_k 20, 3 passages to the model, 600 output tokens).
func WithLimits(maxTopK, maxPassages, maxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTopK = maxTopK
		c.maxPassages = maxPassages
		c.maxTokens = maxTokens
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
