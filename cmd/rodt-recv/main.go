// Command rodt-recv is the receiving peer of a Reliable Ordered Data
// Transfer session: it binds a listener, and for every accepted connection
// negotiates the maximum payload size and reassembles the sender's
// message in order.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rodt-project/rodt/pkg/rodt"
)

func main() {
	if err := Command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type recvFlags struct {
	listen     string
	maxPayload int
	attrsFile  string
	configFile string
	metricsAddr string
	logLevel   string
}

// Command returns the rodt-recv CLI command, grounded on the teacher's
// Command()/run() split in pkg/client/userd/service.go and on
// original_source/server.py's listen-and-accept loop.
func Command() *cobra.Command {
	f := &recvFlags{}
	c := &cobra.Command{
		Use:   "rodt-recv",
		Short: "Accept RODT sessions and reassemble incoming messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	flags := c.Flags()
	flags.StringVar(&f.listen, "listen", "127.0.0.1:9999", "address to bind")
	flags.IntVar(&f.maxPayload, "max-payload", 0, "maximum payload size to negotiate (0 = use config default)")
	flags.StringVar(&f.attrsFile, "attrs-file", "", "attributes file with maximum_msg_size, as in the original RODT CLI")
	flags.StringVar(&f.configFile, "config", "", "YAML config file with session defaults")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "address to serve /metrics on (overrides config when set; empty keeps the config value)")
	flags.StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")
	return c
}

func run(ctx context.Context, f *recvFlags) error {
	cfg, err := rodt.LoadConfig(f.configFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if f.maxPayload > 0 {
		cfg.MaxPayloadSize = f.maxPayload
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.attrsFile != "" {
		m, err := parseAttrsFile(f.attrsFile)
		if err != nil {
			return errors.Wrap(err, "parsing attributes file")
		}
		cfg.MaxPayloadSize = m
	}
	if cfg.MaxPayloadSize <= 0 {
		return fmt.Errorf("maximum payload size must be positive, got %d", cfg.MaxPayloadSize)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetLevel(level)
	ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

	registry := prometheus.NewRegistry()
	metrics := rodt.NewMetrics(registry)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})

	if cfg.MetricsAddr != "" {
		g.Go("metrics", func(ctx context.Context) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			dlog.Infof(ctx, "serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
	}

	g.Go("listener", func(ctx context.Context) error {
		return serveListener(ctx, f.listen, cfg.MaxPayloadSize, metrics)
	})

	return g.Wait()
}

// serveListener binds addr and spawns one session per accepted connection,
// mirroring original_source/server.py's accept loop (one thread per
// client) with the teacher's soft/hard shutdown split from dcontext. Errors
// from concurrently-running sessions are collected into a single
// multierror so a noisy batch of failing peers doesn't drown out the
// listener's own shutdown error.
func serveListener(ctx context.Context, addr string, maxPayload int, metrics *rodt.Metrics) (err error) {
	lc := net.ListenConfig{}
	ln, lerr := lc.Listen(ctx, "tcp", addr)
	if lerr != nil {
		return errors.Wrapf(lerr, "listening on %s", addr)
	}
	dlog.Infof(ctx, "listening on %s, max payload size %d", addr, maxPayload)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var sessionErrs *multierror.Error

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	defer func() {
		wg.Wait()
		if sessionErrs.ErrorOrNil() != nil {
			err = multierror.Append(err, sessionErrs.ErrorOrNil()).ErrorOrNil()
		}
	}()

	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if dcontext.HardContext(ctx).Err() != nil {
				return nil
			}
			return errors.Wrap(aerr, "accept")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cerr := serveConn(ctx, conn, maxPayload, metrics); cerr != nil {
				mu.Lock()
				sessionErrs = multierror.Append(sessionErrs, cerr)
				mu.Unlock()
			}
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, maxPayload int, metrics *rodt.Metrics) error {
	defer conn.Close()
	sessionID := uuid.New().String()
	ctx = dlog.WithField(ctx, "session", sessionID)

	if err := rodt.SendMaxPayloadSize(conn, maxPayload); err != nil {
		metrics.HandshakesFailed.Inc()
		dlog.Errorf(ctx, "handshake failed: %v", err)
		return errors.Wrapf(err, "session %s handshake", sessionID)
	}
	metrics.HandshakesCompleted.Inc()

	engine := rodt.NewReceiverEngine(metrics)
	start := time.Now()
	message, err := engine.Serve(ctx, conn, maxPayload)
	if err != nil {
		metrics.SessionsFailed.WithLabelValues("receiver", rodt.ErrorKind(err)).Inc()
		dlog.Errorf(ctx, "session failed after %s: %v", time.Since(start), err)
		return errors.Wrapf(err, "session %s", sessionID)
	}
	metrics.SessionsCompleted.WithLabelValues("receiver").Inc()
	dlog.Infof(ctx, "message received (%d bytes) in %s: %q", len(message), time.Since(start), message)
	return nil
}
