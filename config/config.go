package config

import (
	"fmt"
	"time"
)

// Config represents an agent.yaml configuration file. All values are
// optional and act as defaults for run flags; CLI flags always
// override config values.
type Config struct {
	Link      LinkConfig      `yaml:"link"`
	Session   SessionConfig   `yaml:"session"`
	Schema    SchemaConfig    `yaml:"schema"`
	LLM       LLMConfig       `yaml:"llm"`
	Pad       PadConfig       `yaml:"pad"`
	Agent     AgentConfig     `yaml:"agent"`
	Learning  LearningConfig  `yaml:"learning"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Power     PowerConfig     `yaml:"power"`
	Log       LogConfig       `yaml:"log"`
}

// LinkConfig holds stub connection defaults.
type LinkConfig struct {
	Addr            string   `yaml:"addr"`
	DialTimeout     Duration `yaml:"dial_timeout"`
	ExchangeTimeout Duration `yaml:"exchange_timeout"`
	MaxReconnects   uint     `yaml:"max_reconnects"`
	MaxRetransmits  int      `yaml:"max_retransmits"`
	BackoffInitial  Duration `yaml:"backoff_initial"`
	BackoffMax      Duration `yaml:"backoff_max"`
}

// SessionConfig holds memory session defaults.
type SessionConfig struct {
	MaxChunkSize int  `yaml:"max_chunk_size"`
	Attempts     int  `yaml:"attempts"`
	AllowWrites  bool `yaml:"allow_writes"`
}

// SchemaConfig selects the game-state table.
type SchemaConfig struct {
	// Path points at a YAML table; empty uses the compiled-in default.
	Path string `yaml:"path"`
}

// LLMConfig holds model endpoint defaults.
type LLMConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	Model          string   `yaml:"model"`
	Temperature    float64  `yaml:"temperature"`
	MaxTokens      int64    `yaml:"max_tokens"`
	MaxRetries     uint     `yaml:"max_retries"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`
}

// PadConfig holds DSU pad server defaults.
type PadConfig struct {
	Addr           string   `yaml:"addr"`
	ServerID       uint32   `yaml:"server_id"`
	ReportInterval Duration `yaml:"report_interval"`
	PressDuration  Duration `yaml:"press_duration"`
	CursorKeyDelay Duration `yaml:"cursor_key_delay"`
}

// AgentConfig holds loop defaults.
type AgentConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	// FrameDir is the emulator screenshot directory; empty disables
	// the vision pipeline.
	FrameDir string `yaml:"frame_dir"`
	// FrameMaxAge rejects screenshots older than this.
	FrameMaxAge Duration `yaml:"frame_max_age"`
	MapName     string   `yaml:"map_name"`
}

// LearningConfig holds battle-history defaults.
type LearningConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
}

// KnowledgeConfig holds knowledge store defaults.
type KnowledgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PowerConfig holds emergency buff defaults.
type PowerConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxPerBattle int  `yaml:"max_per_battle"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
