// Command reviewflow runs an automated pull request review: three
// cooperating agents gather context, draft a review, and post it to
// GitHub.
//
// Configuration comes from the environment (see Config), optionally
// layered with a .env file and a YAML override file:
//
//	REPOSITORY=octocat/hello-world PR_NUMBER=42 \
//	OPENAI_API_KEY=sk-... reviewflow
//
//	reviewflow -config reviewflow.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/dshills/agentflow-go/flow"
	"github.com/dshills/agentflow-go/flow/emit"
	"github.com/dshills/agentflow-go/review"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configFile := flag.String("config", "", "path to an optional YAML config file overriding environment values")
	flag.Parse()

	cfg, err := loadConfig(ctx, *configFile)
	if err != nil {
		clog.ErrorContextf(ctx, "configuration: %v", err)
		return 1
	}

	host, err := review.NewGitHubHost(cfg.Repository, cfg.GitHubToken)
	if err != nil {
		clog.ErrorContextf(ctx, "github host: %v", err)
		return 1
	}
	defer func() { _ = host.Close() }()

	chatModel, err := cfg.chatModel()
	if err != nil {
		clog.ErrorContextf(ctx, "model: %v", err)
		return 1
	}

	st, err := cfg.openStore()
	if err != nil {
		clog.ErrorContextf(ctx, "store: %v", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	opts := []flow.Option{
		flow.WithMaxTurns(cfg.MaxTurns),
		flow.WithEmitter(emit.NewLogEmitter(os.Stdout, cfg.LogJSON)),
		flow.WithStore(st),
	}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		opts = append(opts, flow.WithMetrics(flow.NewMetrics(registry)))
		go serveMetrics(ctx, cfg.MetricsAddr, registry)
	}

	wf, err := review.NewWorkflow(review.Config{
		Host:    host,
		Model:   chatModel,
		Options: opts,
	})
	if err != nil {
		clog.ErrorContextf(ctx, "workflow: %v", err)
		return 1
	}

	clog.InfoContextf(ctx, "reviewing %s#%d with provider %s", cfg.Repository, cfg.PRNumber, cfg.Provider)

	result := wf.Review(ctx, cfg.PRNumber)
	switch result.Status {
	case flow.StatusSuccess:
		fmt.Printf("Review complete after %d turns:\n%s\n", result.Turns, result.Output)
		return 0
	case flow.StatusExhausted:
		clog.ErrorContextf(ctx, "review exhausted its %d-turn budget", cfg.MaxTurns)
		return 1
	default:
		clog.ErrorContextf(ctx, "review failed after %d turns: %v", result.Turns, result.Err)
		return 1
	}
}

// serveMetrics exposes the Prometheus registry until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	clog.InfoContextf(ctx, "metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		clog.ErrorContextf(ctx, "metrics server: %v", err)
	}
}
