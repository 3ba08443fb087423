// Package main is the UniRAG CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unistudy/unirag/internal/answer"
	"github.com/unistudy/unirag/internal/cache"
	"github.com/unistudy/unirag/internal/config"
	"github.com/unistudy/unirag/internal/extract"
	"github.com/unistudy/unirag/internal/index"
	"github.com/unistudy/unirag/internal/ingest"
	"github.com/unistudy/unirag/internal/llm"
	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/rag"
	"github.com/unistudy/unirag/internal/raster"
	"github.com/unistudy/unirag/internal/retrieval"
	"github.com/unistudy/unirag/internal/server"
	"github.com/unistudy/unirag/internal/storage"
	"github.com/unistudy/unirag/internal/vector"
	"github.com/unistudy/unirag/internal/vision"
	"github.com/unistudy/unirag/internal/watcher"
	"github.com/unistudy/unirag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/unirag/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("unirag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`UniRAG - multimodal document Q&A

Usage:
  unirag server [--config path] [--debug]    start the API server
  unirag ingest [--server url] <file.pdf>    upload a document
  unirag ask [--server url] <question>       ask a question (streams the answer)
  unirag status [--server url]               show the indexed corpus
  unirag version                             print version
`)
}

// components holds everything the server wires together, for ordered shutdown.
type components struct {
	Engine  *rag.Engine
	Storage storage.Storage
}

func (c *components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	client := llm.NewClient(llm.Config{
		BaseURL:       cfg.Models.BaseURL,
		GenerateModel: cfg.Models.GenerateModel,
		EmbedModel:    cfg.Models.EmbedModel,
		VisionModel:   cfg.Models.VisionModel,
		Timeout:       time.Duration(cfg.Models.TimeoutSeconds) * time.Second,
		MaxRetries:    cfg.Models.MaxRetries,
	})
	embedder := llm.NewCachingEmbedder(client, cfg.Models.EmbedCacheSize)

	cacheStore, err := cache.NewStore(cfg.Storage.CacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	pipeline := ingest.NewPipeline(
		cacheStore,
		extract.NewExtractor(),
		raster.NewFitzRasterizer(cfg.Ingest.RasterDPI),
		vision.NewAnalyzer(client, time.Duration(cfg.Models.TimeoutSeconds)*time.Second, logger),
		&cfg.Ingest,
		logger,
	)

	idx, err := vector.NewPersistentIndex(cfg.Storage.VectorIndexPath)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	engine := rag.NewEngine(
		pipeline,
		ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		index.NewIndexer(embedder, idx, cfg.Models.MaxRetries, logger),
		retrieval.NewRetriever(embedder, idx, cfg.Retrieval, logger),
		answer.NewComposer(client, logger),
		db,
		idx,
		logger,
	)
	return &components{Engine: engine, Storage: db}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Storage.DataDir != "" {
		w := startDocumentWatcher(watchCtx, cfg.Storage.DataDir, comps.Engine, logger)
		defer w.Stop()
	}

	srv := server.NewServer(comps.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// startDocumentWatcher watches the drop directory: a new or changed PDF is
// ingested, a deleted one is removed from the corpus. Existing files are
// synced on startup so documents added while the server was down get indexed.
func startDocumentWatcher(ctx context.Context, dataDir string, engine *rag.Engine, logger *zap.Logger) *watcher.Watcher {
	w := watcher.NewWatcher(dataDir,
		func(path string) {
			content, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("watch read failed", zap.String("path", path), zap.Error(err))
				return
			}
			if _, err := engine.IngestDocument(context.Background(), filepath.Base(path), content); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := engine.DeleteDocument(context.Background(), filepath.Base(path)); err != nil {
				logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
			}
		},
		logger,
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go w.SyncExisting()
	return w
}

func serverFlag(fs *flag.FlagSet) *string {
	return fs.String("server", "http://localhost:8080", "server base URL")
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	base := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: unirag ingest [--server url] <file.pdf> [more.pdf ...]")
		os.Exit(1)
	}

	failed := false
	for _, path := range fs.Args() {
		if err := uploadFile(*base, path); err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func uploadFile(base, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err == nil {
		_, err = fw.Write(content)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	resp, err := http.Post(base+"/api/v1/documents", mw.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed (%s): %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var record models.DocumentRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	cached := ""
	if record.FromCache {
		cached = " (from cache)"
	}
	fmt.Printf("Ingested %s: %d pages, %d chunks%s\n", record.Filename, record.Pages, record.Chunks, cached)
	return nil
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	base := serverFlag(fs)
	k := fs.Int("k", 0, "number of chunks to retrieve (0 = server default)")
	lambda := fs.Float64("lambda", -1, "relevance/diversity trade-off in [0, 1] (negative = server default)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: unirag ask [--server url] <question>")
		os.Exit(1)
	}
	question := strings.Join(fs.Args(), " ")

	req := models.AskRequest{Question: question, K: *k}
	if *lambda >= 0 {
		req.Lambda = lambda
	}
	payload, _ := json.Marshal(req)
	resp, err := http.Post(*base+"/api/v1/ask", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request failed (%s): %s\n", resp.Status, strings.TrimSpace(string(msg)))
		os.Exit(1)
	}

	if err := printAnswerStream(resp.Body); err != nil {
		fmt.Printf("\nStream error: %v\n", err)
		os.Exit(1)
	}
}

// printAnswerStream renders the server's SSE stream: sources first, then the
// answer tokens as they arrive.
func printAnswerStream(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "sources":
				var sources []models.SourceRef
				if err := json.Unmarshal([]byte(data), &sources); err == nil && len(sources) > 0 {
					fmt.Println("Sources:")
					for i, s := range sources {
						fmt.Printf("  %d. %s p.%d\n", i+1, s.Source, s.Page)
					}
					fmt.Println()
				}
			case "token":
				var tok string
				if err := json.Unmarshal([]byte(data), &tok); err == nil {
					fmt.Print(tok)
				}
			case "error":
				var msg string
				_ = json.Unmarshal([]byte(data), &msg)
				return fmt.Errorf("%s", msg)
			case "done":
				fmt.Println()
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	base := serverFlag(fs)
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*base + "/api/v1/status")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request failed (%s): %s\n", resp.Status, strings.TrimSpace(string(msg)))
		os.Exit(1)
	}

	var status rag.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Documents: %d\nChunks: %d\n", status.Documents, status.Chunks)
	for _, doc := range status.Sources {
		fmt.Printf("  %s  %d pages, %d chunks  (ingested %s)\n",
			doc.Filename, doc.Pages, doc.Chunks, doc.IngestedAt.Format("2006-01-02 15:04"))
	}
}
