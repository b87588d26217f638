// CLAUDE:SUMMARY Entry point: config, audit DB, MCP server over stdio or chi-routed HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/archiviste/archiviste"
	"github.com/hazyhaar/archiviste/dbopen"
	"github.com/hazyhaar/archiviste/idgen"
	"github.com/hazyhaar/archiviste/kit"
	"github.com/hazyhaar/archiviste/observability"
)

const version = "1.0.0"

func main() {
	configPath := env("CONFIG", "")
	cachePath := env("CACHE_PATH", "")
	auditPath := env("AUDIT_DB", "db/audit.db")
	transport := env("MCP_TRANSPORT", "stdio")
	port := env("PORT", "8090")
	logLevel := env("LOG_LEVEL", "info")

	// Logging goes to stderr: stdout carries the protocol in stdio mode.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg archiviste.Config
	if configPath != "" {
		loaded, err := archiviste.LoadConfig(configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	if cachePath != "" {
		cfg.CachePath = cachePath
	}

	// Audit DB.
	auditDB, err := dbopen.Open(auditPath, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		slog.Error("audit db", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	recorder := observability.NewRecorder(auditDB, 1000)
	defer recorder.Close()

	if days := envInt("AUDIT_RETENTION_DAYS", 30); days > 0 {
		go cleanupLoop(ctx, recorder, days)
	}

	svc, err := archiviste.New(cfg, logger, archiviste.WithAudit(recorder))
	if err != nil {
		slog.Error("archiviste service", "error", err)
		os.Exit(1)
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "archiviste",
		Version: version,
	}, nil)
	svc.RegisterMCP(srv)

	switch transport {
	case "stdio":
		slog.Info("archiviste starting", "transport", "stdio", "version", version)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
	case "http":
		if err := serveHTTP(ctx, srv, port); err != nil {
			slog.Error("mcp http", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("unknown MCP_TRANSPORT", "transport", transport)
		os.Exit(1)
	}
}

func serveHTTP(ctx context.Context, srv *mcp.Server, port string) error {
	newRequestID := idgen.Prefixed("req_", idgen.NanoID(12))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := kit.WithTransport(req.Context(), "http")
			ctx = kit.WithRequestID(ctx, newRequestID())
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil))

	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("archiviste starting", "transport", "http", "addr", httpSrv.Addr, "version", version)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cleanupLoop(ctx context.Context, rec *observability.Recorder, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := rec.Cleanup(ctx, retentionDays)
			if err != nil {
				slog.Warn("audit cleanup", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("audit cleanup", "deleted", n)
			}
		}
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
