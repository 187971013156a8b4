// drivedav serves a Quark cloud drive as a read-only WebDAV share.
//
// Directory listings are fetched lazily and kept in a bounded, expiring
// cache that is cleared periodically, on SIGHUP, or through the admin
// endpoint.
//
// Sub-commands:
//
//	drivedav [flags]          Run the WebDAV server (default)
//	drivedav serve [flags]    Same as above
//	drivedav hash-password    Read a password and print its bcrypt hash
//	drivedav version          Print the version
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/config"
	"github.com/drivedav/drivedav/internal/dircache"
	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
	"github.com/drivedav/drivedav/internal/webdav"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "hash-password":
			cmdHashPassword(args[1:])
			return
		case "version":
			fmt.Println("drivedav", version)
			return
		case "serve":
			args = args[1:]
		}
	}

	cmdServe(args)
}

func cmdServe(args []string) {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Info("drivedav starting",
		zap.String("version", version),
		zap.String("listen", cfg.ListenAddr()),
		zap.String("root", cfg.Root),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("cache_shards", cfg.CacheShards),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("refresh_interval", cfg.RefreshInterval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := drive.New(drive.Config{
		BaseURL: cfg.APIBaseURL,
		Cookie:  cfg.Cookie,
	})
	if err != nil {
		logging.Fatal("failed to create drive client", zap.Error(err))
	}

	cache := dircache.New(cfg.CacheSize, cfg.CacheTTL, dircache.WithShards(cfg.CacheShards))
	populator := dircache.NewPopulator(cache, client, cfg.PageSize)

	sources := []dircache.Source{dircache.Interval(cfg.RefreshInterval)}
	if src := reloadSource(); src != nil {
		sources = append(sources, src)
	}
	controller := dircache.NewController(cache, sources...)
	go controller.Run(ctx)

	fs := webdav.NewFS(populator, client, cfg.Root, cfg.ReadBufferSize)
	opts := webdav.Options{
		Prefix:    cfg.StripPrefix,
		AutoIndex: cfg.AutoIndex,
	}
	if cfg.AuthEnabled() {
		opts.Credentials = &webdav.Credentials{
			User:         cfg.AuthUser,
			Password:     cfg.AuthPassword,
			PasswordHash: cfg.AuthPasswordHash,
		}
	} else {
		logging.Warn("WebDAV authentication disabled")
	}

	// Start metrics server
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           webdav.NewHandler(fs, controller, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLSEnabled() {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logging.Info("shutting down...", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("graceful shutdown incomplete", zap.Error(err))
		}
		if metricsServer != nil {
			metricsServer.Close()
		}
	}()

	if cfg.TLSEnabled() {
		logging.Info("server listening (TLS)",
			zap.String("addr", cfg.ListenAddr()),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr()))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
	<-stopped
	logging.Info("drivedav stopped")
}
