// Command pgrollback runs the transparent savepoint-isolation proxy: it
// accepts PostgreSQL client connections, multiplexes them over one shared
// backend connection, and between BEGIN TEST 'name' and ROLLBACK TEST
// 'name' rewrites each BEGIN/COMMIT/ROLLBACK into savepoint commands, so
// ROLLBACK TEST undoes everything the test wrote even where the test
// itself committed.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pgrollback/internal/config"
	"pgrollback/internal/metrics"
	"pgrollback/internal/session"
	"pgrollback/internal/status"
	"pgrollback/pkg/logger"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("pgrollback: failed to load config: %v", err)
	}

	logger.SetDefaultLevelFromString(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("pgrollback: failed to open log file: %v", err)
		}
		defer f.Close()
		logger.GetDefaultLogger().SetOutput(f)
	}
	log := logger.GetDefaultLogger()

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	factory := session.NewFactory(cfg.Backend.Host, cfg.Backend.Port, cfg.Backend.DialTimeout, log, m)

	listener, err := net.Listen("tcp", cfg.Listen.Address)
	if err != nil {
		log.Error("pgrollback: failed to listen on %s: %v", cfg.Listen.Address, err)
		os.Exit(1)
	}

	var pgListener net.Listener = listener
	var httpServer *http.Server
	if cfg.Metrics.StatusPage && cfg.Metrics.Address == "" {
		demux := status.NewDemux(listener)
		pgListener = demux
		httpServer = &http.Server{Handler: status.Handler(m, statusPageSource(cfg, factory))}
		go func() {
			if err := httpServer.Serve(demux.HTTPListener()); err != nil && err != http.ErrServerClosed {
				log.Warn("pgrollback: status server stopped: %v", err)
			}
		}()
	} else if cfg.Metrics.StatusPage && cfg.Metrics.Address != "" {
		httpServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: status.Handler(m, statusPageSource(cfg, factory)),
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("pgrollback: status server stopped: %v", err)
			}
		}()
	}

	srv := session.NewServer(pgListener, factory)

	log.Info("pgrollback listening on %s, proxying %s", cfg.Listen.Address, net.JoinHostPort(cfg.Backend.Host, fmt.Sprintf("%d", cfg.Backend.Port)))

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("pgrollback: shutting down")
	case err := <-serveErrCh:
		log.Error("pgrollback: listener stopped: %v", err)
	}

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		httpServer.Shutdown(ctx)
		cancel()
	}

	if err := srv.Stop(); err != nil {
		log.Warn("pgrollback: error during shutdown: %v", err)
	}
	log.Info("pgrollback: stopped")
}

func statusPageSource(cfg *config.Config, factory *session.Factory) status.PageSource {
	return func() status.Page {
		addr, up, count := factory.Snapshot()
		return status.Page{
			BackendAddr: addr,
			BackendUp:   up,
			ClientCount: count,
		}
	}
}
