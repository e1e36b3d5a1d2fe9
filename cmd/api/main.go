package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/openlegis/billchat/internal/cache"
	"github.com/openlegis/billchat/internal/chat"
	"github.com/openlegis/billchat/internal/config"
	"github.com/openlegis/billchat/internal/congress"
	"github.com/openlegis/billchat/internal/search"
	"github.com/openlegis/billchat/pkg/models"
)

type chatRequest struct {
	Congress int    `json:"congress"`
	Type     string `json:"type"`
	Number   int    `json:"number"`
	Overview string `json:"overview"`
	Message  string `json:"message"`
	TopK     int    `json:"top_k"`
}

type chatResponse struct {
	Bill     models.BillIdentity `json:"bill"`
	Response string              `json:"response"`
}

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("billchat-api", pflag.ExitOnError)
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().
		Str("chat_provider", cfg.ChatProvider).
		Str("embedding_provider", cfg.EmbeddingProvider).
		Str("log_level", cfg.LogLevel).
		Msg("starting billchat api")

	var source congress.TextSource
	if cfg.CorpusDir != "" {
		local, err := congress.NewLocalSource(cfg.CorpusDir)
		if err != nil {
			log.Fatalf("Failed to open local corpus: %v", err)
		}
		logger.Info().Str("corpus", cfg.CorpusDir).Int("bills", len(local.Bills())).Msg("serving bill text from local corpus")
		source = local
	} else {
		source = congress.NewClient(cfg.CongressAPIKey)
	}

	contentCache := cache.New(source, cache.DefaultTTL)
	svc := chat.NewService(contentCache, search.NewEngine())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Congress == 0 || req.Type == "" || req.Number == 0 || req.Message == "" {
			http.Error(w, "congress, type, number and message are required", http.StatusBadRequest)
			return
		}
		bill := models.BillIdentity{Congress: req.Congress, Type: req.Type, Number: req.Number}
		topK := req.TopK
		if topK <= 0 {
			topK = cfg.TopK
		}

		ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
		defer cancel()

		start := time.Now()
		// Settings are an immutable snapshot per request.
		text := svc.Ask(ctx, bill, req.Overview, req.Message, cfg.Settings(), topK)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(chatResponse{Bill: bill, Response: text}); err != nil {
			http.Error(w, "Failed to encode response", 500)
			return
		}
		hlog.FromRequest(r).Info().Str("bill", bill.Key()).Int("top_k", topK).Dur("dur", time.Since(start)).Msg("chat served")
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}
		bill, err := billFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		k := cfg.TopK
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
		defer cancel()

		res, err := svc.Search(ctx, bill, q, cfg.Settings(), k)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if res == nil {
			_, _ = w.Write([]byte("[]"))
			return
		}
		if err := json.NewEncoder(w).Encode(res); err != nil {
			log.Printf("failed to encode response: %v", err)
			_, _ = w.Write([]byte("[]"))
		}
	})

	mux.HandleFunc("/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		contentCache.Clear()
		w.WriteHeader(http.StatusNoContent)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

func billFromQuery(r *http.Request) (models.BillIdentity, error) {
	congress, err := strconv.Atoi(r.URL.Query().Get("congress"))
	if err != nil {
		return models.BillIdentity{}, fmt.Errorf("invalid congress parameter")
	}
	number, err := strconv.Atoi(r.URL.Query().Get("number"))
	if err != nil {
		return models.BillIdentity{}, fmt.Errorf("invalid number parameter")
	}
	billType := r.URL.Query().Get("type")
	if billType == "" {
		return models.BillIdentity{}, fmt.Errorf("missing type parameter")
	}
	return models.BillIdentity{Congress: congress, Type: billType, Number: number}, nil
}
