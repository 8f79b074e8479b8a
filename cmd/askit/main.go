// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/askit"
	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/ai/openai"
	"github.com/poiesic/askit/ingestion"
	"github.com/poiesic/askit/rag"
	"github.com/poiesic/askit/reindex"
	"github.com/poiesic/askit/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "askit",
		Usage: "Question answering over permission-scoped document collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Ask a question and print the grounded answer",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Conversation session ID",
						Value:   "default",
					},
					&cli.StringSliceFlag{
						Name:    "permissions",
						Aliases: []string{"p"},
						Usage:   "Permission token granting access to tagged documents (repeatable)",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum sources to keep after ranking (0 uses the default)",
					},
				}, modelFlags()...),
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a file as a searchable document",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source identifier for the document (defaults to the file path)",
					},
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Permission tag restricting who can retrieve the document",
					},
				}, modelFlags()...),
			},
			{
				Name:   "reindex",
				Usage:  "Regenerate stored segment vectors with a new embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of segments to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N segments",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "sessions",
				Usage:  "List stored conversation sessions or clear one",
				Action: sessionsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "clear",
						Usage: "Delete the session with this ID instead of listing",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// modelFlags declares the model service flags shared by commands that run
// the full engine.
func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible host URL for embedding and generation",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Generator model name",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:  "rerank-host",
			Usage: "Reranker service host URL",
			Value: "http://localhost:7997",
		},
		&cli.StringFlag{
			Name:  "rerank-model",
			Usage: "Reranker model name",
			Value: "bge-reranker-v2-m3",
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithRerankHost(c.String("rerank-host")),
		ai.WithRerankModel(c.String("rerank-model")),
	)
}

func askCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("usage: askit ask [options] <question>")
	}

	permissions := c.StringSlice("permissions")
	if len(permissions) == 0 {
		fmt.Fprintln(os.Stderr, "Note: without --permissions tokens no documents are in scope")
	}

	// Open engine
	opts := []askit.Option{askit.WithAIConfig(aiConfigFromFlags(c))}
	if k := c.Int("top-k"); k > 0 {
		opts = append(opts, askit.WithAskOptions(rag.WithTopK(k)))
	}
	engine, err := askit.Open(c.String("db"), opts...)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	answer, err := engine.Ask(ctx, rag.Request{
		SessionID:   c.String("session"),
		Query:       query,
		Permissions: permissions,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if answer.Rewritten != "" && answer.Rewritten != query {
		fmt.Fprintf(os.Stderr, "Query rewritten to: %s\n\n", answer.Rewritten)
	}
	fmt.Println(answer.Text)

	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, source := range answer.Sources {
			fmt.Printf("  %d. %s (score %.2f)\n", i+1, source.DocumentSource, source.RerankScore)
		}
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("usage: askit ingest [options] <file>")
	}
	path := c.Args().First()

	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	source := c.String("source")
	if source == "" {
		source = path
	}
	if source == "-" {
		return fmt.Errorf("source is required when reading from stdin")
	}

	segments := segmentInput(string(content))
	if len(segments) == 0 {
		return fmt.Errorf("no content to ingest")
	}

	// Open engine
	engine, err := askit.Open(c.String("db"), askit.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	doc, err := engine.Ingest(ctx, ingestion.DocumentInput{
		Source:        source,
		PermissionTag: c.String("tag"),
		Segments:      segments,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	engine.Wait()

	stored, err := engine.DocumentRepository().GetDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	fmt.Printf("Ingested %s as %s (%d segments, status %s)\n", source, doc.Id, len(segments), stored.Status)
	return nil
}

// segmentInput splits text into one segment per blank-line separated block.
func segmentInput(text string) []ingestion.SegmentInput {
	var segments []ingestion.SegmentInput
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		segments = append(segments, ingestion.SegmentInput{Content: block})
	}
	return segments
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	// Validate flags
	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	// Open database
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewSegmentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	// Create AI config
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	// Create embedder
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer provider.Close()

	// Create reindex config
	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	// Create reindexer
	reindexer := reindex.NewReindexer(repo, provider.Embedder(), reindexConfig, os.Stderr)

	// Run reindexing
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}

	return nil
}

func sessionsCommand(c *cli.Context) error {
	ctx := context.Background()

	// Validate flags
	dbPath := c.String("db")
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	// Open database
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewSessionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	if id := c.String("clear"); id != "" {
		removed, err := repo.DeleteSession(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Printf("Removed %d messages from session %s\n", removed, id)
		return nil
	}

	ids, err := repo.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No sessions stored")
		return nil
	}
	for _, id := range ids {
		count, err := repo.CountMessages(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}
		fmt.Printf("%s\t%d messages\n", id, count)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
