// Package config handles bcverify.toml verifier configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/bcverify/absint"
	"github.com/chazu/bcverify/diag"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "bcverify.toml"

// ErrInvalid is returned when a configuration does not match the schema.
var ErrInvalid = errors.New("invalid configuration")

//go:embed schema.cue
var schemaSource string

// Config represents a bcverify.toml configuration.
type Config struct {
	Verifier Verifier          `toml:"verifier"`
	Log      Log               `toml:"log"`
	Server   Server            `toml:"server"`
	Messages map[string]string `toml:"messages"`

	// Dir is the directory containing the bcverify.toml file (set at load time).
	Dir string `toml:"-"`
}

// Verifier configures how findings are weighed and how many workers run.
type Verifier struct {
	AllowWrongSubclassing            bool `toml:"allow_wrong_subclassing_in_call_args"`
	ExceptionHandlerErrorsAsWarnings bool `toml:"exception_handler_errors_as_warnings"`
	Workers                          int  `toml:"workers"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Server configures the RPC endpoint.
type Server struct {
	Address    string `toml:"address"`
	BatchLimit int    `toml:"batch_limit"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Verifier.Workers == 0 {
		c.Verifier.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost:8787"
	}
	if c.Server.BatchLimit == 0 {
		c.Server.BatchLimit = 1024
	}
}

// Parse decodes and validates configuration text. name is used in errors.
func Parse(data []byte, name string) (*Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var c Config
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if _, err := c.severities(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c.applyDefaults()
	return &c, nil
}

// validate checks decoded TOML against the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	v := schema.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Load parses the bcverify.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a bcverify.toml file and loads
// it. It returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) severities() (diag.Severities, error) {
	if len(c.Messages) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(c.Messages))
	for name := range c.Messages {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(diag.Severities, len(names))
	for _, name := range names {
		k, ok := diag.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown message kind %q", ErrInvalid, name)
		}
		sev, ok := diag.ParseSeverity(c.Messages[name])
		if !ok {
			return nil, fmt.Errorf("%w: message %s: unknown severity %q", ErrInvalid, name, c.Messages[name])
		}
		out[k] = sev
	}
	return out, nil
}

// Options converts the configuration into verifier options.
func (c *Config) Options() (absint.Options, error) {
	sev, err := c.severities()
	if err != nil {
		return absint.Options{}, err
	}
	return absint.Options{
		AllowWrongSubclassing:            c.Verifier.AllowWrongSubclassing,
		ExceptionHandlerErrorsAsWarnings: c.Verifier.ExceptionHandlerErrorsAsWarnings,
		Severities:                       sev,
	}, nil
}
