// Command xdao-attest-eventd serves the audit event CAS to indexers over gRPC
// (read-only), including the newest batch CID from the configured head file,
// and exposes Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"xdao.co/attest/config"
	"xdao.co/attest/storage/casregistry"
	"xdao.co/attest/storage/grpccas"

	_ "xdao.co/attest/storage/localfs"
	_ "xdao.co/attest/storage/memcas"
)

func main() {
	fs := flag.NewFlagSet("xdao-attest-eventd", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (required)")
	listen := fs.String("listen", "", "gRPC listen address (overrides config)")
	metricsListen := fs.String("metrics-listen", "", "Prometheus listen address (overrides config)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	_ = fs.Parse(os.Args[1:])

	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *metricsListen != "" {
		cfg.MetricsListen = *metricsListen
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:7777"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("eventd stopped", "err", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	cas, closeFn, err := cfg.Events.Open(casregistry.UsageDaemon)
	if err != nil {
		return err
	}
	defer closeFn()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	head := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "attest_eventd_head_readable",
		Help: "1 when the persisted audit log head can be read from the event CAS",
	})
	if h, err := cfg.Events.Head(); err == nil && h.Defined() {
		if ok, err := cas.Has(ctx, h); err == nil && ok {
			head.Set(1)
		} else {
			logger.Warn("audit head not in event CAS", "head", h.String(), "err", err)
		}
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{
		CAS:      cas,
		ReadOnly: true,
		HeadFunc: func(context.Context) (cid.Cid, error) { return cfg.Events.Head() },
	})

	var metricsSrv *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.MetricsListen)
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("eventd listening", "addr", lis.Addr().String(), "backends", len(cfg.Events.Backends), "write_policy", cfg.Events.WritePolicy)
	return s.Serve(lis)
}
