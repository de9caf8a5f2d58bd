package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the tunable knobs. The window size and the negative-confidence
// threshold are operational choices, not contracts.
const (
	DefaultSentimentModel   = "distilbert-base-uncased-finetuned-sst-2-english"
	DefaultMinNegativeScore = 0.6
	DefaultSMTPHost         = "smtp.gmail.com"
	DefaultSMTPPort         = 587
	DefaultFetchTimeout     = 20 * time.Second
)

// Config holds everything a single run needs. All values come from the
// environment; secrets are expected to be injected by the external scheduler.
type Config struct {
	Leaders    []string
	TargetURLs []string

	EmailFrom string
	EmailPass string
	EmailTo   string
	SMTPHost  string
	SMTPPort  int

	SentimentBackend string // "hf" or "onnx"
	SentimentModel   string
	HFAPIToken       string
	ONNXLibraryPath  string
	ONNXModelPath    string

	MinNegativeScore float64
	FetchTimeout     time.Duration
}

// Load reads the run configuration from the environment. Required values that
// are missing or malformed produce an error; the run must not start without
// them.
func Load() (*Config, error) {
	cfg := &Config{
		SMTPHost:         DefaultSMTPHost,
		SMTPPort:         DefaultSMTPPort,
		SentimentBackend: "hf",
		SentimentModel:   DefaultSentimentModel,
		MinNegativeScore: DefaultMinNegativeScore,
		FetchTimeout:     DefaultFetchTimeout,
	}

	var err error
	if cfg.Leaders, err = jsonList("LEADERS"); err != nil {
		return nil, err
	}
	if cfg.TargetURLs, err = jsonList("TARGET_URLS"); err != nil {
		return nil, err
	}
	if len(cfg.Leaders) == 0 {
		return nil, fmt.Errorf("LEADERS must be a non-empty JSON array")
	}

	for _, req := range []struct {
		key string
		dst *string
	}{
		{"EMAIL_FROM", &cfg.EmailFrom},
		{"EMAIL_PASS", &cfg.EmailPass},
		{"EMAIL_TO", &cfg.EmailTo},
	} {
		v := os.Getenv(req.key)
		if v == "" {
			return nil, fmt.Errorf("%s environment variable is not set", req.key)
		}
		*req.dst = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		cfg.SMTPPort = p
	}

	if v := os.Getenv("SENTIMENT_BACKEND"); v != "" {
		if v != "hf" && v != "onnx" {
			return nil, fmt.Errorf("invalid SENTIMENT_BACKEND %q: want hf or onnx", v)
		}
		cfg.SentimentBackend = v
	}
	if v := os.Getenv("SENTIMENT_MODEL"); v != "" {
		cfg.SentimentModel = v
	}
	cfg.HFAPIToken = os.Getenv("HF_API_TOKEN")
	cfg.ONNXLibraryPath = os.Getenv("ONNX_DLL_PATH")
	cfg.ONNXModelPath = os.Getenv("ONNX_MODEL_PATH")

	if v := os.Getenv("MIN_NEGATIVE_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid MIN_NEGATIVE_SCORE %q: want a value in [0,1]", v)
		}
		cfg.MinNegativeScore = f
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS %q", v)
		}
		cfg.FetchTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func jsonList(key string) ([]string, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = "[]"
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of strings: %w", key, err)
	}
	return out, nil
}
