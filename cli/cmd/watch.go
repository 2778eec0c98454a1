package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/cli/render"
	"github.com/bizkut/eden-fft-agent/cli/tui"
	"github.com/bizkut/eden-fft-agent/gamestate"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/types"
)

// WatchCommand returns the watch command: a live decoded view of the
// party, polled at a fixed interval. Read-only.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch live party state (supports --tui)",
		Flags: append(ReadOnlyFlags(),
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval",
				Value: time.Second,
			},
		),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := log.NewLogger("watch")
	st, err := openStack(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer st.close()

	cache := gamestate.NewCache(st.session, st.table, logger, st.metrics)
	interval := c.Duration("interval")

	if c.Bool("tui") {
		updates := make(chan tui.Update, 1)
		go func() {
			defer close(updates)
			_ = cache.Run(ctx, interval, func(snap types.PartySnapshot, changes []types.FieldChange) {
				// Drop rather than block when the view lags a poll.
				select {
				case updates <- tui.Update{Snapshot: snap, Changes: changes}:
				default:
				}
			})
		}()
		return r.RenderTUI("watch_party", tui.Feed{Updates: updates})
	}

	err = cache.Run(ctx, interval, func(snap types.PartySnapshot, _ []types.FieldChange) {
		_ = r.Render(probeUnits(snap))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
