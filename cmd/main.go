package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Bhavik2205/leader-watch/internal/alert"
	"github.com/Bhavik2205/leader-watch/internal/config"
	"github.com/Bhavik2205/leader-watch/internal/fetch"
	"github.com/Bhavik2205/leader-watch/internal/model"
	"github.com/Bhavik2205/leader-watch/internal/pipeline"
)

func main() {
	// A local .env is a convenience for development; in the scheduled
	// environment everything arrives as injected secrets.
	_ = godotenv.Load()

	l, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()
	logger := l.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("Invalid configuration", "error", err)
	}

	classifier, err := buildClassifier(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to build classifier", "error", err)
	}

	fetcher := fetch.New(cfg.FetchTimeout, logger)
	notifier := alert.NewEmailNotifier(
		cfg.SMTPHost, cfg.SMTPPort,
		cfg.EmailFrom, cfg.EmailPass, cfg.EmailTo,
		logger,
	)

	driver := pipeline.NewDriver(fetcher, classifier, notifier, cfg.Leaders, cfg.MinNegativeScore, logger)

	if err := driver.Run(context.Background(), cfg.TargetURLs); err != nil {
		logger.Fatalw("Run finished with errors", "error", err)
	}
}

func buildClassifier(cfg *config.Config, logger *zap.SugaredLogger) (model.Classifier, error) {
	switch cfg.SentimentBackend {
	case "onnx":
		if cfg.ONNXModelPath == "" {
			return nil, fmt.Errorf("ONNX_MODEL_PATH is required for the onnx backend")
		}
		return model.NewONNXClassifier(cfg.ONNXLibraryPath, cfg.ONNXModelPath, logger), nil
	default:
		return model.NewHFClassifier(cfg.SentimentModel, cfg.HFAPIToken, logger), nil
	}
}
