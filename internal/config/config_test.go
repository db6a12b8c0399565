package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `model.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	validActions := []string{"", "warn", "reject"}

	for _, action := range validActions {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Model.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_EmptyBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Bucket = "  "

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}

func TestValidate_NgramRange(t *testing.T) {
	cfg := validConfig()
	cfg.Index.NgramMin = 5
	cfg.Index.NgramMax = 3

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted ngram range")
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Provider = "llamafile"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "model.provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestValidate_OpenAIRequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Provider = "openai"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for openai without base_url")
	}

	cfg.Model.BaseURL = "http://localhost:8080/v1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Storage.Bucket != "text-description" {
		t.Errorf("expected bucket text-description, got %q", cfg.Storage.Bucket)
	}
	if len(cfg.Storage.Prefixes) != 1 || cfg.Storage.Prefixes[0] != "screenshots/" {
		t.Errorf("expected prefixes [screenshots/], got %v", cfg.Storage.Prefixes)
	}
	if cfg.Storage.Region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", cfg.Storage.Region)
	}
	if cfg.Index.ChunkSize != 800 || cfg.Index.Overlap() != 200 {
		t.Errorf("expected chunking 800/200, got %d/%d", cfg.Index.ChunkSize, cfg.Index.Overlap())
	}
	if cfg.Index.NgramMin != 3 || cfg.Index.NgramMax != 5 {
		t.Errorf("expected ngram 3..5, got %d..%d", cfg.Index.NgramMin, cfg.Index.NgramMax)
	}
	if cfg.Index.Threshold() != 0.01 {
		t.Errorf("expected MinScore=0.01, got %v", cfg.Index.Threshold())
	}
	if cfg.Index.DefaultTopK != 5 || cfg.Index.MaxTopK != 20 {
		t.Errorf("expected top_k 5 max 20, got %d max %d", cfg.Index.DefaultTopK, cfg.Index.MaxTopK)
	}
	if cfg.Model.Provider != "bedrock" {
		t.Errorf("expected provider bedrock, got %q", cfg.Model.Provider)
	}
	if cfg.Model.ModelID != "us.anthropic.claude-haiku-4-5-20251001-v1:0" {
		t.Errorf("unexpected model id %q", cfg.Model.ModelID)
	}
	if cfg.Model.MaxTokens != 600 || cfg.Model.MaxPassages != 3 || cfg.Model.MaxContextChars != 10000 {
		t.Errorf("unexpected model limits %+v", cfg.Model)
	}
	if cfg.Capture.ProbeMS != 1000 || cfg.Capture.StopTimeoutSec != 5 {
		t.Errorf("expected probe 1000ms stop 5s, got %d/%d", cfg.Capture.ProbeMS, cfg.Capture.StopTimeoutSec)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache should be disabled without addrs")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	zero := 0
	cfg := Config{
		HTTP:  HTTPConfig{Port: 9000, ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Index: IndexConfig{ChunkSize: 400, ChunkOverlap: &zero, MaxTopK: 50},
		Model: ModelConfig{Provider: "openai", ModelID: "gpt-4o-mini", BaseURL: "http://x"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.ChunkSize != 400 {
		t.Errorf("expected ChunkSize=400, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.Overlap() != 0 {
		t.Errorf("explicit zero overlap must be kept, got %d", cfg.Index.Overlap())
	}
	if cfg.Index.MaxTopK != 50 {
		t.Errorf("expected MaxTopK=50, got %d", cfg.Index.MaxTopK)
	}
	if cfg.Model.ModelID != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %q", cfg.Model.ModelID)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("TXT_PREFIXES", "screenshots/, notes/ ,,")
	t.Setenv("CHUNK_OVERLAP", "0")
	t.Setenv("CACHE_ADDRS", "localhost:6379")

	data := []byte(`
http:
  port: 8080
storage:
  bucket: ${TXT_BUCKET:-corpus}
  prefixes: ${TXT_PREFIXES}
index:
  chunk_overlap: ${CHUNK_OVERLAP:-200}
cache:
  addrs: ${CACHE_ADDRS}
auth:
  api_keys: ${RECALL_TEST_MISSING_KEYS:-}
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Bucket != "corpus" {
		t.Errorf("expected default bucket corpus, got %q", cfg.Storage.Bucket)
	}
	want := []string{"screenshots/", "notes/"}
	if len(cfg.Storage.Prefixes) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Storage.Prefixes)
	}
	for i := range want {
		if cfg.Storage.Prefixes[i] != want[i] {
			t.Errorf("prefix[%d] = %q, want %q", i, cfg.Storage.Prefixes[i], want[i])
		}
	}
	if cfg.Index.Overlap() != 0 {
		t.Errorf("expected overlap 0 from env, got %d", cfg.Index.Overlap())
	}
	if !cfg.Cache.Enabled() {
		t.Error("expected cache enabled")
	}
	if len(cfg.Auth.APIKeys) != 0 {
		t.Errorf("expected no api keys, got %v", cfg.Auth.APIKeys)
	}
}

func TestParse_ListSequence(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  prefixes:\n    - a/\n    - b/,c/\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := strings.Join(cfg.Storage.Prefixes, "|"); got != "a/|b/|c/" {
		t.Errorf("expected a/|b/|c/, got %q", got)
	}
}

func TestParse_MinScore(t *testing.T) {
	cfg, err := Parse([]byte("index:\n  min_score: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Index.Threshold() != 0 {
		t.Errorf("explicit zero min_score must be kept, got %v", cfg.Index.Threshold())
	}

	cfg, err = Parse([]byte("index:\n  min_score: 0.2\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Index.Threshold() != 0.2 {
		t.Errorf("expected 0.2, got %v", cfg.Index.Threshold())
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	for _, v := range []float64{-0.1, 1} {
		cfg := validConfig()
		cfg.Index.MinScore = &v
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for min_score %v", v)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("storage: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.Model.Provider == "" || cfg.Storage.Bucket == "" {
		t.Errorf("expected populated config, got %+v", cfg)
	}
}
