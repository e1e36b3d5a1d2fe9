package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/internal/chunker"
	"github.com/openlegis/billchat/internal/config"
	"github.com/openlegis/billchat/internal/congress"
	"github.com/openlegis/billchat/internal/store"
	"github.com/openlegis/billchat/pkg/models"
)

// Fetches one bill, chunks and embeds it, and mirrors the result into
// the pgvector store.
func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("billchat-indexer", pflag.ExitOnError)
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Database == "" {
		log.Fatal("BILLCHAT_DB_URL is required for the indexer")
	}
	if cfg.BillType == "" || cfg.BillNumber == 0 {
		log.Fatal("--bill-type and --bill-number are required")
	}
	bill := models.BillIdentity{Congress: cfg.BillCongress, Type: cfg.BillType, Number: cfg.BillNumber}

	var source congress.TextSource
	if cfg.CorpusDir != "" {
		source, err = congress.NewLocalSource(cfg.CorpusDir)
		if err != nil {
			log.Fatalf("Failed to open local corpus: %v", err)
		}
	} else {
		source = congress.NewClient(cfg.CongressAPIKey)
	}

	backend, err := ai.NewEmbeddingBackend(cfg.Settings())
	if err != nil {
		log.Fatalf("Failed to create embedding backend: %v", err)
	}
	embedder := ai.NewService(backend)

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	if backend.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}
	if err := st.Migrate(ctx, backend.Dim()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	text, err := source.FullText(ctx, bill)
	if err != nil {
		log.Fatalf("Failed to fetch bill text: %v", err)
	}

	chunks := chunker.Default(text)
	zlog.Info().Str("bill", bill.Key()).Int("chunks", len(chunks)).Msg("chunked bill text")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := embedder.EmbedMany(ctx, texts)
	if err != nil {
		log.Fatalf("Failed to embed chunks: %v", err)
	}

	for i, c := range chunks {
		if err := st.UpsertChunk(ctx, bill, c, embeddings[i]); err != nil {
			zlog.Error().Err(err).Int("chunk", c.ID).Msg("upsert failed")
		}
	}
	zlog.Info().Str("bill", bill.Key()).Int("chunks", len(chunks)).Msg("bill indexed")
}
