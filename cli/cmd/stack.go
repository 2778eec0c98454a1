package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/config"
	"github.com/bizkut/eden-fft-agent/link"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/memsession"
	"github.com/bizkut/eden-fft-agent/metrics"
	"github.com/bizkut/eden-fft-agent/schema"
)

// defaultStubAddr is the emulator debug stub's default listen address.
const defaultStubAddr = "127.0.0.1:6543"

// loadConfig reads the config file named by --config, or returns an
// all-defaults config when the flag is unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// stack is the connected memory pipeline every command that touches
// the target shares: schema, link, session, metrics.
type stack struct {
	link    *link.Link
	session *memsession.Session
	table   *schema.Schema
	metrics *metrics.Collector
}

// openStack loads the schema table, connects the link, and builds a
// session. allowWrites gates the session's mutation capability
// regardless of what the config says.
func openStack(ctx context.Context, cfg *config.Config, allowWrites bool, logger *log.Logger) (*stack, error) {
	table := schema.Default()
	if cfg.Schema.Path != "" {
		loaded, err := schema.Load(cfg.Schema.Path)
		if err != nil {
			return nil, err
		}
		table = loaded
	}

	addr := cfg.Link.Addr
	if addr == "" {
		addr = defaultStubAddr
	}

	collector := metrics.NewCollector(addr, table.Version)

	lk := link.New(link.Config{
		Addr:            addr,
		DialTimeout:     cfg.Link.DialTimeout.Duration,
		ExchangeTimeout: cfg.Link.ExchangeTimeout.Duration,
		MaxReconnects:   cfg.Link.MaxReconnects,
		MaxRetransmits:  cfg.Link.MaxRetransmits,
		BackoffInitial:  cfg.Link.BackoffInitial.Duration,
		BackoffMax:      cfg.Link.BackoffMax.Duration,
	}, logger, collector)

	if err := lk.Connect(ctx); err != nil {
		return nil, err
	}

	session := memsession.New(lk, memsession.Config{
		MaxChunkSize: cfg.Session.MaxChunkSize,
		Attempts:     cfg.Session.Attempts,
		AllowWrites:  allowWrites,
	}, logger, collector)

	return &stack{
		link:    lk,
		session: session,
		table:   table,
		metrics: collector,
	}, nil
}

func (s *stack) close() {
	_ = s.link.Close()
}
