package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/api"
	"github.com/Roygautam8852/SyncSpace/archive"
	"github.com/Roygautam8852/SyncSpace/auth"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/db"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/internal/metrics"
	"github.com/Roygautam8852/SyncSpace/middleware"
	"github.com/Roygautam8852/SyncSpace/session"
	"github.com/Roygautam8852/SyncSpace/ws"
)

func main() {
	// .env is optional; real deployments set the environment
	_ = godotenv.Load()
	cfg := config.Load()

	if err := logx.Init(cfg.Env); err != nil {
		panic(err)
	}
	defer logx.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg)
	if err != nil {
		logx.L.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer store.Close()

	writer := db.NewWriter(store)
	// the writer outlives the request context so queued saves still land
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	go writer.Run(writerCtx)

	opts := ws.Options{
		TypingTTL:   cfg.TypingTTL,
		EventBuffer: cfg.EventBuffer,
		AutoCreate:  cfg.AutoCreate,
	}

	var signer api.URLSigner
	if cfg.ArchiveEnabled() {
		arc, err := archive.New(ctx, cfg)
		if err != nil {
			logx.L.Fatal("archive", zap.Error(err))
		}
		opts.Archive = arc
		signer = arc
	}

	reg := session.NewRegistry(session.PolicyByName(cfg.CallPolicy))
	hub := ws.NewHub()
	router := ws.NewRouter(reg, hub, writer, opts)
	go router.Run(ctx)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.GoogleClientID)
	mux := routes(verifier, ws.NewHandler(router, hub, cfg.CORSAllow, cfg.SendBuffer), store, signer)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.CORS(cfg.CORSAllow)(middleware.Logging(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.L.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("call_policy", reg.Policy().Name()),
			zap.Bool("auth", verifier.Enabled()),
			zap.Bool("archive", cfg.ArchiveEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.L.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logx.L.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// hijacked websockets are not tracked by Shutdown
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.L.Warn("http shutdown", zap.Error(err))
	}

	<-router.Done()
	writer.Close()
	select {
	case <-writer.Done():
	case <-shutdownCtx.Done():
		logx.L.Warn("store writer did not drain", zap.Int("pending", writer.Len()))
	}
}

// routes mounts the HTTP surface. Everything that exposes room data sits
// behind the verifier; archive is optional.
func routes(verifier *auth.Verifier, wsHandler http.Handler, store db.Store, signer api.URLSigner) *http.ServeMux {
	requireAuth := middleware.Auth(verifier)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", requireAuth(wsHandler))
	mux.Handle("GET /api/board", requireAuth(api.GetBoard(store)))
	if signer != nil {
		mux.Handle("GET /api/archive", requireAuth(api.GetArchive(signer)))
	}
	mux.Handle("GET /healthz", api.Healthz())
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
