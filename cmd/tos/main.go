// Command tos starts the in-process object broker's interactive shell.
//
// Usage: tos [-s script_file]
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"

	"github.com/xinyang-go/tos/internal/config"
	"github.com/xinyang-go/tos/internal/guard"
	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/metrics"
	"github.com/xinyang-go/tos/internal/registry"
	"github.com/xinyang-go/tos/internal/shell"

	_ "github.com/xinyang-go/tos/internal/demo"
)

func zerologLevel(l logger.Level) zerolog.Level {
	switch l {
	case logger.LevelNone:
		return zerolog.Disabled
	case logger.LevelError:
		return zerolog.ErrorLevel
	case logger.LevelWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func main() {
	scriptFile := flag.String("s", "", "script file to preload commands from")
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	cfg.Print()

	format := logger.FormatJSON
	if cfg.LogFormat == "pretty" {
		format = logger.FormatPretty
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.SetGlobalLevel(level)

	if cfg.LogFormat == "pretty" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	zerolog.SetGlobalLevel(zerologLevel(level))
	cfg.LogConfig(log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootLogger := logger.New("tos-main", format)

	g := guard.New(guard.Config{
		MaxNodes:           cfg.MaxNodes,
		MaxGoroutines:      cfg.MaxGoroutines,
		CPURejectThreshold: cfg.CPURejectThreshold,
		MemoryLimitBytes:   cfg.MemoryLimitBytes,
	}, rootLogger)
	g.StartMonitoring(ctx, cfg.MetricsInterval)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rootLogger.Error("metrics server: " + err.Error())
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.MetricsInterval)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reg := registry.New()
	sh := shell.New(reg, g, format, cfg.MaxCommandTokens)

	if *scriptFile != "" {
		sh.Exec("script " + *scriptFile)
	}

	done := make(chan struct{})
	go func() {
		sh.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		rootLogger.Info("shutting down")
	}
}
