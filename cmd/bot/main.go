package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func deadline() time.Time { return time.Now().Add(time.Second) }

func newRootCmd() *cobra.Command {
	var (
		url     string
		name    string
		local   bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:          "bot",
		Short:        "Connect a scripted player that sprints, casts and heals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewDevelopmentConfig()
			if !verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
			}
			log, err := config.Build()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			log = log.Named("bot").With(zap.String("name", name))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			b, err := run(ctx, url, name, local, log)
			if b != nil {
				log.Info("bot done",
					zap.Int("accepted", b.accepted),
					zap.Int("rejected", b.rejected),
					zap.Any("events", b.events))
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&url, "url", "ws://localhost:8080/v1/ws", "websocket url")
	f.StringVar(&name, "name", "bot", "actor name")
	f.BoolVar(&local, "local", false, "ask to be treated as locally controlled (loopback only)")
	f.BoolVarP(&verbose, "verbose", "v", false, "log every lifecycle event")
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
