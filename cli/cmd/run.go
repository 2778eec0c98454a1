package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/actions"
	"github.com/bizkut/eden-fft-agent/agent"
	"github.com/bizkut/eden-fft-agent/capture"
	"github.com/bizkut/eden-fft-agent/gamestate"
	"github.com/bizkut/eden-fft-agent/knowledge"
	"github.com/bizkut/eden-fft-agent/learner"
	"github.com/bizkut/eden-fft-agent/llm"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/pad"
	"github.com/bizkut/eden-fft-agent/power"
)

// Default storage locations when the config leaves them unset.
const (
	defaultDataDir       = "data"
	defaultKnowledgePath = "data/knowledge.db"
)

// RunCommand returns the run command: the autonomous agent loop. This
// is the only long-running command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the autonomous agent loop",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "map-name",
				Usage: "Battle map label for history records (overrides config)",
			},
			&cli.StringFlag{
				Name:  "difficulty",
				Usage: "New-game difficulty: easy, normal, hard",
				Value: "normal",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := log.NewLogger("run")
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg, cfg.Session.AllowWrites, logger)
	if err != nil {
		return fmt.Errorf("cannot reach debug stub: %w", err)
	}
	defer st.close()

	cache := gamestate.NewCache(st.session, st.table, log.NewLogger("gamestate"), st.metrics)

	chat := llm.New(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryBaseDelay: cfg.LLM.RetryBaseDelay.Duration,
	}, log.NewLogger("llm"), st.metrics)

	padSrv, err := pad.NewServer(pad.Config{
		Addr:           cfg.Pad.Addr,
		ServerID:       cfg.Pad.ServerID,
		ReportInterval: cfg.Pad.ReportInterval.Duration,
		PressDuration:  cfg.Pad.PressDuration.Duration,
		CursorKeyDelay: cfg.Pad.CursorKeyDelay.Duration,
	}, log.NewLogger("pad"))
	if err != nil {
		return fmt.Errorf("cannot start pad server: %w", err)
	}
	go func() { _ = padSrv.Run(ctx) }()
	logger.Info("pad server listening", map[string]any{"addr": padSrv.Addr().String()})

	executor := actions.NewExecutor(padSrv, log.NewLogger("actions"))

	var frames capture.Source = capture.NullSource{}
	if cfg.Agent.FrameDir != "" {
		frames = &capture.DirSource{
			Dir:    cfg.Agent.FrameDir,
			MaxAge: cfg.Agent.FrameMaxAge.Duration,
		}
	}

	var opts []agent.Option

	var store *knowledge.Store
	if cfg.Knowledge.Enabled {
		path := cfg.Knowledge.Path
		if path == "" {
			path = defaultKnowledgePath
		}
		store, err = knowledge.Open(path, log.NewLogger("knowledge"))
		if err != nil {
			return fmt.Errorf("cannot open knowledge store: %w", err)
		}
		defer store.Close()
		executor.SetLearner(knowledge.NewFeedback(store, frames, chat, log.NewLogger("feedback")))
		opts = append(opts, agent.WithKnowledge(store))
	}

	if cfg.Learning.Enabled {
		dataDir := cfg.Learning.DataDir
		if dataDir == "" {
			dataDir = defaultDataDir
		}
		var lopts []learner.Option
		if store != nil {
			lopts = append(lopts, learner.WithGuideStore(store))
		}
		l, err := learner.New(dataDir, log.NewLogger("learner"), st.metrics, lopts...)
		if err != nil {
			return fmt.Errorf("cannot open battle history: %w", err)
		}
		opts = append(opts, agent.WithLearner(l))
	}

	if cfg.Power.Enabled {
		if !cfg.Session.AllowWrites {
			return fmt.Errorf("power manager requires session.allow_writes")
		}
		mgr := power.New(st.session, st.table, power.Config{
			Enabled:      true,
			MaxPerBattle: cfg.Power.MaxPerBattle,
		}, log.NewLogger("power"))
		opts = append(opts, agent.WithPower(mgr))
	}

	mapName := cfg.Agent.MapName
	if v := c.String("map-name"); v != "" {
		mapName = v
	}

	a := agent.New(agent.Config{
		PollInterval: cfg.Agent.PollInterval.Duration,
		MapName:      mapName,
		Difficulty:   c.String("difficulty"),
	}, frames, chat, cache, executor, padSrv, log.NewLogger("agent"), st.metrics, opts...)

	runErr := a.Run(ctx)

	snap := st.metrics.Snapshot()
	logger.Info("session finished", map[string]any{
		"reads_completed": snap.ReadsCompleted,
		"reads_failed":    snap.ReadsFailed,
		"polls_completed": snap.PollsCompleted,
		"polls_failed":    snap.PollsFailed,
		"llm_calls":       snap.LLMCalls,
		"llm_failures":    snap.LLMFailures,
		"battles_won":     snap.BattlesWon,
		"battles_lost":    snap.BattlesLost,
	})

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
