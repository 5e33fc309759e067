package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/config"
	"github.com/zhouzirui/medrag/backend/internal/handler"
	"github.com/zhouzirui/medrag/backend/internal/middleware"
	"github.com/zhouzirui/medrag/backend/internal/service/chat"
	"github.com/zhouzirui/medrag/backend/internal/service/events"
	"github.com/zhouzirui/medrag/backend/internal/service/qa"
	"github.com/zhouzirui/medrag/backend/internal/web"
)

const (
	janitorInterval = 10 * time.Minute
	defaultIdle     = 24 * time.Hour
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		klog.Warningf("failed to load .env file: %v", err)
		klog.Info("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		klog.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.AI.Enabled() {
		klog.Info("Ark credentials present")
	} else {
		klog.Warning("Ark 凭证未配置，提问时将提示问答链不可用")
	}
	if !cfg.Retrieval.Enabled() {
		klog.Warning("DATABASE_URL 未配置，向量库不可用")
	}

	provider := qa.NewProvider(cfg.AI, cfg.Retrieval)
	defer provider.Close()

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Enabled() {
		natsPublisher, err := events.NewNatsPublisher(cfg.Events.NatsURL, cfg.Events.NatsToken, cfg.Events.Subject)
		if err != nil {
			klog.Warningf("failed to connect to NATS, turn events disabled: %v", err)
		} else {
			defer natsPublisher.Close()
			publisher = natsPublisher
			klog.Infof("publishing turn events to %s", cfg.Events.Subject)
		}
	}

	store := chat.NewService()
	go store.RunJanitor(ctx, janitorInterval, idleLimit(cfg.Session))

	orchestrator := chat.NewOrchestrator(store, provider, publisher)

	renderer, err := web.NewRenderer()
	if err != nil {
		klog.Fatalf("failed to load templates: %v", err)
	}

	sessions := middleware.NewSessions(cfg.Session)
	router := handler.NewRouter(cfg.Server.ServiceName, sessions, orchestrator, renderer)

	startServer(ctx, cfg.Server, router)
}

// idleLimit 会话 cookie 过期后对应的对话记录已不可达。
func idleLimit(cfg config.SessionConfig) time.Duration {
	if cfg.MaxAge <= 0 {
		return defaultIdle
	}
	return time.Duration(cfg.MaxAge) * time.Second
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	klog.Infof("%s listening on %s", serverCfg.ServiceName, addr)
	if err := runServer(ctx, srv); err != nil {
		klog.Errorf("server error: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
