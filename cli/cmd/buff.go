package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/cli/render"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/power"
)

// BuffResponse is the buff command payload.
type BuffResponse struct {
	Slot    int      `json:"slot"`
	Applied []string `json:"applied"`
}

// BuffCommand returns the buff command: one-shot stat writes against a
// party slot. This is the only command besides run that can mutate
// target memory, and only when the config enables writes.
func BuffCommand() *cli.Command {
	return &cli.Command{
		Name:  "buff",
		Usage: "Apply one-shot stat buffs to a party slot (requires session.allow_writes)",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			NoColorFlag,
			&cli.IntFlag{
				Name:     "slot",
				Usage:    "Party slot to buff (1-based)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "hp",
				Usage: "Heal HP by this amount (0 restores to max)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "mp",
				Usage: "Restore MP by this amount (0 restores to max)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "brave",
				Usage: "Raise brave to this value",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "faith",
				Usage: "Raise faith to this value",
				Value: -1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline",
				Value: 15 * time.Second,
			},
		},
		Action: buffAction,
	}
}

func buffAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Session.AllowWrites {
		return cli.Exit("memory writes are disabled; set session.allow_writes in the config", 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	logger := log.NewLogger("buff")
	st, err := openStack(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer st.close()

	slot := c.Int("slot")
	ops := buffOps(c)
	if len(ops) == 0 {
		return fmt.Errorf("nothing to do: pass at least one of --hp, --mp, --brave, --faith")
	}

	// One-shot invocation: size the budget to the requested operations.
	mgr := power.New(st.session, st.table, power.Config{
		Enabled:      true,
		MaxPerBattle: len(ops),
	}, logger)

	resp := BuffResponse{Slot: slot}
	for _, op := range ops {
		if err := op.apply(ctx, mgr, slot); err != nil {
			return fmt.Errorf("%s failed: %w", op.name, err)
		}
		resp.Applied = append(resp.Applied, op.name)
	}

	return r.Render(resp)
}

type buffOp struct {
	name  string
	apply func(ctx context.Context, mgr *power.Manager, slot int) error
}

// buffOps collects the requested operations. A flag left at its -1
// default was not requested.
func buffOps(c *cli.Context) []buffOp {
	var ops []buffOp
	if v := c.Int("hp"); v >= 0 {
		ops = append(ops, buffOp{
			name: fmt.Sprintf("hp+%d", v),
			apply: func(ctx context.Context, mgr *power.Manager, slot int) error {
				return mgr.HealUnit(ctx, slot, v)
			},
		})
	}
	if v := c.Int("mp"); v >= 0 {
		ops = append(ops, buffOp{
			name: fmt.Sprintf("mp+%d", v),
			apply: func(ctx context.Context, mgr *power.Manager, slot int) error {
				return mgr.RestoreMP(ctx, slot, v)
			},
		})
	}
	if v := c.Int("brave"); v >= 0 {
		ops = append(ops, buffOp{
			name: fmt.Sprintf("brave=%d", v),
			apply: func(ctx context.Context, mgr *power.Manager, slot int) error {
				return mgr.BoostBrave(ctx, slot, v)
			},
		})
	}
	if v := c.Int("faith"); v >= 0 {
		ops = append(ops, buffOp{
			name: fmt.Sprintf("faith=%d", v),
			apply: func(ctx context.Context, mgr *power.Manager, slot int) error {
				return mgr.BoostFaith(ctx, slot, v)
			},
		})
	}
	return ops
}
