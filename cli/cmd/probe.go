package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/cli/render"
	"github.com/bizkut/eden-fft-agent/gamestate"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/types"
)

// ProbeUnit is one decoded party slot in the probe output.
type ProbeUnit struct {
	Slot       int    `json:"slot"`
	Job        string `json:"job,omitempty"`
	HP         string `json:"hp"`
	MP         string `json:"mp"`
	Brave      int    `json:"brave"`
	Faith      int    `json:"faith"`
	Speed      int    `json:"speed"`
	Attack     int    `json:"attack"`
	Status     string `json:"status"`
	MagicReady bool   `json:"magic_ready"`
	Alive      bool   `json:"alive"`
}

// ProbeRawResponse is the payload for a raw region read.
type ProbeRawResponse struct {
	Addr   string `json:"addr"`
	Length int    `json:"length"`
	Hex    string `json:"hex"`
}

// ProbeCommand returns the probe command: a one-shot decoded read of
// the live party, or of an arbitrary memory region with --addr.
func ProbeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Read and decode the live party state once",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "slot",
				Usage: "Limit output to one party slot (1-based)",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Raw mode: read from this hex address instead of decoding the party",
			},
			&cli.IntFlag{
				Name:  "length",
				Usage: "Raw mode: bytes to read",
				Value: 16,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall probe deadline",
				Value: 10 * time.Second,
			},
		),
		Action: probeAction,
	}
}

func probeAction(c *cli.Context) error {
	if c.Bool("tui") {
		return fmt.Errorf("--tui is not supported for probe (use watch --tui)")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	logger := log.NewLogger("probe")
	st, err := openStack(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if addrStr := c.String("addr"); addrStr != "" {
		return probeRaw(ctx, r, st, addrStr, c.Int("length"))
	}

	cache := gamestate.NewCache(st.session, st.table, logger, st.metrics)
	snap, err := cache.Poll(ctx)
	if err != nil {
		return err
	}

	units := probeUnits(snap)
	if slot := c.Int("slot"); slot > 0 {
		var filtered []ProbeUnit
		for _, u := range units {
			if u.Slot == slot {
				filtered = append(filtered, u)
			}
		}
		units = filtered
	}

	return r.Render(units)
}

func probeRaw(ctx context.Context, r *render.Renderer, st *stack, addrStr string, length int) error {
	addr, err := parseAddr(addrStr)
	if err != nil {
		return err
	}

	region := types.MemoryRegion{Addr: addr, Length: length}
	data, err := st.session.Read(ctx, region)
	if err != nil {
		return err
	}

	return r.Render(ProbeRawResponse{
		Addr:   addr.String(),
		Length: length,
		Hex:    hex.EncodeToString(data),
	})
}

// parseAddr parses a hex address with or without a 0x prefix.
func parseAddr(s string) (types.Address, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return types.Address(v), nil
}

// probeUnits maps occupied party slots onto probe rows.
func probeUnits(snap types.PartySnapshot) []ProbeUnit {
	units := make([]ProbeUnit, 0, len(snap.Units))
	for _, u := range snap.Units {
		if !u.Present() {
			continue
		}
		p := ProbeUnit{
			Slot:       u.Slot,
			HP:         fmt.Sprintf("%d/%d", u.HP, u.MaxHP),
			MP:         fmt.Sprintf("%d/%d", u.MP, u.MaxMP),
			Brave:      u.Brave,
			Faith:      u.Faith,
			Speed:      u.Speed,
			Attack:     u.Attack,
			Status:     fmt.Sprintf("0x%04x%04x", u.StatusShield2, u.StatusShield1),
			MagicReady: u.MagicReady,
			Alive:      u.Alive(),
		}
		if u.Job.Known() {
			p.Job = u.Job.String()
		}
		units = append(units, p)
	}
	return units
}
