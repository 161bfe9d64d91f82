package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/cors"

	"github.com/seproj/chatbackend/internal/app/wiring"
	chathttp "github.com/seproj/chatbackend/internal/domains/chat/transport/httpserver"
	orchhttp "github.com/seproj/chatbackend/internal/domains/orchestrator/transport/httpserver"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

func runServe(g globals, argv []string, e env) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(e.stderr)

	var listen string
	var noRefresh bool
	fs.StringVar(&listen, "listen", "", "Listen address host:port (overrides config).")
	fs.BoolVar(&noRefresh, "no-startup-refresh", false, "Skip the orchestrator refresh normally requested at startup.")
	fs.Usage = func() { writeServeHelp(e.stderr) }

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		writeServeHelp(e.stderr)
		return exitUsage
	}

	ctr, log, ok := open(g, e, wiring.Options{})
	if !ok {
		return exitError
	}
	defer func() {
		if err := ctr.Close(); err != nil {
			log.WithError(err).Warn("close failed")
		}
	}()

	cfg := ctr.Config
	if listen != "" {
		cfg.Server.Listen = listen
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           newHandler(ctr),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	log.With(logging.Fields{
		"listen":  cfg.Server.Listen,
		"engine":  cfg.Engine.Backend,
		"model":   cfg.Engine.Model,
		"storage": cfg.Storage.Driver,
	}).Info("serving")
	if len(cfg.Network.AllowHosts) > 0 {
		log.Info("allow hosts: " + strings.Join(cfg.Network.AllowHosts, ", "))
	}

	if cfg.RefreshOnStartup() && !noRefresh {
		ctr.Orchestrator.Request()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Warn("shutdown signal: " + sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			return exitError
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
		return exitError
	}

	log.Info("server stopped")
	return exitOK
}

// newHandler mounts both domains on one mux behind the CORS policy.
func newHandler(ctr *wiring.Container) http.Handler {
	mux := http.NewServeMux()
	chathttp.Server{Chat: ctr.Chat, Model: ctr.Config.Engine.Model}.Register(mux)
	orchhttp.Server{Orchestrator: ctr.Orchestrator}.Register(mux)

	return cors.New(cors.Options{
		AllowedOrigins:   ctr.Config.Server.AllowOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(ctr.Config.Server.AllowOrigins),
	}).Handler(mux)
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func writeServeHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, strings.TrimSpace(`
chatbackend [global flags] serve [flags]

Flags:
  --listen host:port       (default: config server.listen, 127.0.0.1:8000)
  --no-startup-refresh     Do not request an orchestrator refresh at startup.

Routes:
  GET  /health
  POST /generate, /api/generate
  POST /orchestrate, /api/orchestrate
  GET  /orchestrator/state, /api/orchestrator/state
  GET  /orchestrator/scheduler, /api/orchestrator/scheduler
`))
}
