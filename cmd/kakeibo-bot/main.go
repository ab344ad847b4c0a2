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

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/api/option"

	"github.com/stanaka/kakeibo-bot/internal/classify"
	"github.com/stanaka/kakeibo-bot/internal/extract"
	"github.com/stanaka/kakeibo-bot/internal/lineapi"
	"github.com/stanaka/kakeibo-bot/internal/oracle"
	"github.com/stanaka/kakeibo-bot/internal/receipt"
	"github.com/stanaka/kakeibo-bot/internal/rules"
	"github.com/stanaka/kakeibo-bot/internal/vision"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("kakeibo-bot")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "kakeibo-bot.db", "Database file path")
		archivePath   = fs.StringLong("archive", "./receipts", "Receipt image archive directory")
		rulesPath     = fs.StringLong("rules", "", "Rules JSON file (default: built-in tables)")
		oracleType    = fs.StringLong("oracle", "gemini", "Oracle type: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5", "Ollama model name")
		visionKey     = fs.StringLong("vision-key", "", "Cloud Vision API key (default: application default credentials)")
		channelSecret = fs.StringLong("line-channel-secret", "", "LINE channel secret for webhook signatures")
		channelToken  = fs.StringLong("line-channel-token", "", "LINE channel access token")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KAKEIBO_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *channelSecret == "" || *channelToken == "" {
		slog.Error("LINE credentials are required. Set --line-channel-secret and --line-channel-token")
		os.Exit(1)
	}

	ctx := context.Background()

	// Rule tables
	table := rules.Default()
	if *rulesPath != "" {
		var err error
		table, err = rules.Load(*rulesPath)
		if err != nil {
			slog.Error("Failed to load rules", "path", *rulesPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded rules", "path", *rulesPath, "categories", len(table.Categories))
	}

	// Database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Oracle
	var textOracle oracle.Oracle
	switch *oracleType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini oracle...", "model", *geminiModel)
		textOracle, err = oracle.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama oracle...", "url", *ollamaURL, "model", *ollamaModel)
		textOracle, err = oracle.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid oracle type", "type", *oracleType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer textOracle.Close()

	// OCR
	slog.Info("Initializing Cloud Vision...")
	var visionOpts []option.ClientOption
	if *visionKey != "" {
		visionOpts = append(visionOpts, option.WithAPIKey(*visionKey))
	}
	annotator, err := vision.NewGoogleVision(ctx, visionOpts...)
	if err != nil {
		slog.Error("Failed to initialize Cloud Vision", "error", err)
		os.Exit(1)
	}

	// Image archive
	archive, err := receipt.NewLocalArchive(*archivePath)
	if err != nil {
		slog.Error("Failed to initialize archive", "error", err)
		os.Exit(1)
	}

	storeExtractor := extract.NewStoreExtractor(table)
	resolver := receipt.NewHeaderResolver(storeExtractor, textOracle)
	classifier := classify.New(table, textOracle)
	messenger := lineapi.NewClient(*channelToken)

	service := receipt.NewService(db, archive, annotator, textOracle, resolver, classifier, messenger)
	server := receipt.NewServer(service, *channelSecret)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("Server started", "address", addr, "version", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
