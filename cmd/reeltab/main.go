package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/reeltab/reeltab/internal/pipeline"
	"github.com/reeltab/reeltab/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("reeltab")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		tempDir       = fs.StringLong("temp-dir", "", "Scratch directory for per-run working files (default: system temp)")
		extractorType = fs.StringLong("extractor", "gemini", "Extraction backend: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g. llava, qwen2-vl)")
		simThreshold  = fs.Float64Long("similarity-threshold", 0.32, "SSIM below which a video frame is selected; higher selects more frames")
		decodeFPS     = fs.IntLong("decode-fps", 2, "Video decode rate in frames per second")
		fuzzy         = fs.Float64Long("fuzzy-threshold", 0.84, "Name similarity above which line items are merged; 1 disables fuzzy matching")
		concurrency   = fs.IntLong("concurrency", 3, "Maximum in-flight extraction calls per run")
		maxRetries    = fs.IntLong("max-retries", 3, "Extra attempts per frame after a transient extraction failure")
		reqTimeout    = fs.DurationLong("request-timeout", 30*time.Second, "Timeout per external model call attempt")
		runDeadline   = fs.DurationLong("run-deadline", 0, "Overall deadline per pipeline run (0 = none)")
		input         = fs.StringLong("input", "", "Process a single file and exit instead of serving HTTP")
		output        = fs.StringLong("output", "", "CSV output path for --input mode (default: stdout)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("REELTAB"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx := context.Background()

	var backend scanning.Extractor
	var err error
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		backend, err = scanning.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		backend, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer backend.Close()

	extractor := scanning.NewRetrying(backend, *maxRetries, *reqTimeout)

	cfg := pipeline.Config{
		SimilarityThreshold: *simThreshold,
		DecodeFPS:           *decodeFPS,
		FuzzyThreshold:      *fuzzy,
		Concurrency:         *concurrency,
		RunDeadline:         *runDeadline,
	}
	service := pipeline.NewService(extractor, *tempDir, cfg)

	// One-shot mode: run a single pipeline, write CSV, exit
	if *input != "" {
		if err := runOnce(ctx, service, *input, *output); err != nil {
			slog.Error("Extraction failed", "input", *input, "error", err)
			os.Exit(1)
		}
		return
	}

	server := pipeline.NewServer(service)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// runOnce processes one local file through the pipeline and writes the CSV
// to path or stdout.
func runOnce(ctx context.Context, service *pipeline.Service, input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	result, err := service.ProcessUpload(ctx, input, data, pipeline.ContentTypeFor(input))
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings {
		slog.Warn("Frame warning", "frame", warning.FrameIndex, "message", warning.Message)
	}

	csvBytes, err := result.CSV()
	if err != nil {
		return fmt.Errorf("serializing csv: %w", err)
	}

	if output == "" {
		_, err = os.Stdout.Write(csvBytes)
		return err
	}
	if err := os.WriteFile(output, csvBytes, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	slog.Info("Wrote CSV", "output", output, "items", len(result.Items))
	return nil
}
