// Command rodt-send is the sending peer of a Reliable Ordered Data
// Transfer session: it dials a receiver, negotiates the maximum payload
// size, fragments a message, and drives the sliding-window sender engine
// to completion.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
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

type sendFlags struct {
	peer       string
	message    string
	attrsFile  string
	configFile string
	windowSize int
	timeout    time.Duration
	logLevel   string
}

// Command returns the rodt-send CLI command, grounded on the teacher's
// Command()/run() split in pkg/client/userd/service.go.
func Command() *cobra.Command {
	f := &sendFlags{}
	c := &cobra.Command{
		Use:   "rodt-send",
		Short: "Send a message to a RODT receiver over a reliable sliding window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	flags := c.Flags()
	flags.StringVar(&f.peer, "peer", "127.0.0.1:9999", "address of the receiver")
	flags.StringVar(&f.message, "message", "", "message to send (ignored if --attrs-file is set)")
	flags.StringVar(&f.attrsFile, "attrs-file", "", "attributes file with message/window_size/timeout, as in the original RODT CLI")
	flags.StringVar(&f.configFile, "config", "", "YAML config file with session defaults")
	flags.IntVar(&f.windowSize, "window", 0, "sliding window size (0 = use config default)")
	flags.DurationVar(&f.timeout, "timeout", 0, "retransmission timeout (0 = use config default)")
	flags.StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")
	return c
}

func run(ctx context.Context, f *sendFlags) error {
	cfg, err := rodt.LoadConfig(f.configFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	message := f.message
	if f.windowSize > 0 {
		cfg.WindowSize = f.windowSize
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	if f.attrsFile != "" {
		a, err := parseAttrsFile(f.attrsFile)
		if err != nil {
			return errors.Wrap(err, "parsing attributes file")
		}
		message = a.Message
		cfg.WindowSize = a.WindowSize
		cfg.Timeout = a.Timeout
	}

	if message == "" {
		return fmt.Errorf("no message to send: pass --message or --attrs-file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetLevel(level)
	ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})

	metrics := rodt.NewMetrics(nil)

	g.Go("session", func(ctx context.Context) error {
		dlog.Infof(ctx, "connecting to %s", f.peer)
		conn, err := net.Dial("tcp", f.peer)
		if err != nil {
			return errors.Wrapf(err, "dialing %s", f.peer)
		}
		defer conn.Close()

		maxPayload, err := rodt.ReceiveMaxPayloadSize(conn)
		if err != nil {
			metrics.HandshakesFailed.Inc()
			return err
		}
		metrics.HandshakesCompleted.Inc()
		dlog.Infof(ctx, "negotiated maximum payload size %d", maxPayload)

		fragments, err := rodt.Fragment([]byte(message), maxPayload)
		if err != nil {
			return err
		}
		dlog.Infof(ctx, "sending %d fragments, window=%d timeout=%s", len(fragments), cfg.WindowSize, cfg.Timeout)

		engine := rodt.NewSenderEngine(metrics)
		if err := engine.Run(ctx, conn, fragments, cfg.WindowSize, cfg.Timeout); err != nil {
			metrics.SessionsFailed.WithLabelValues("sender", rodt.ErrorKind(err)).Inc()
			return err
		}
		metrics.SessionsCompleted.WithLabelValues("sender").Inc()
		dlog.Info(ctx, "message sent and fully acknowledged")
		return nil
	})

	return g.Wait()
}
