package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/mylstore/wa-relay/internal/api"
	"github.com/mylstore/wa-relay/internal/config"
	"github.com/mylstore/wa-relay/internal/keepalive"
	"github.com/mylstore/wa-relay/internal/media"
	"github.com/mylstore/wa-relay/internal/relay"
	"github.com/mylstore/wa-relay/internal/wa"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := wa.OpenContainer(ctx, cfg.DBPath, waLog.Stdout("Database", "ERROR", true))
	if err != nil {
		logrus.WithError(err).Fatal("opening credential store")
	}

	factory := wa.NewSQLiteFactory(container, waLog.Stdout("Client", "ERROR", true))
	session := wa.NewSessionManager(factory, wa.WithReconnectDelay(cfg.ReconnectDelay))
	go session.Run(ctx)

	renderer := media.NewChromeRenderer(media.RendererConfig{
		ChromePath: cfg.ChromePath,
		Timeout:    cfg.RenderTimeout,
		Settle:     cfg.RenderSettle,
	})
	pipeline := media.NewPipeline(renderer)

	server := api.NewServer(relay.New(session, pipeline))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	keepalive.Start(ctx, cfg.SelfURL, cfg.KeepAliveEvery)

	go func() {
		logrus.WithField("port", cfg.Port).Info("relay listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
}
