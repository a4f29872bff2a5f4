// Package config handles jal.toml analysis configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "jal.toml"

// Config represents a jal.toml file.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Classes  []Class  `toml:"class"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Analysis tunes frame inference.
type Analysis struct {
	MaxIterations int    `toml:"max-iterations"`
	Snapshots     bool   `toml:"snapshots"`
	Parallelism   int    `toml:"parallelism"`
	LogLevel      string `toml:"log-level"`
	LogTimeFormat string `toml:"log-time-format"`
}

// Class declares a class the hierarchy cannot otherwise resolve.
type Class struct {
	Name       string   `toml:"name"`
	Super      string   `toml:"super"`
	Interface  bool     `toml:"interface"`
	Interfaces []string `toml:"interfaces"`
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Default returns the configuration used when no file is present.
func Default() *Config {
	d := verifier.DefaultOptions()
	return &Config{Analysis: Analysis{
		MaxIterations: d.MaxIterations,
		Snapshots:     d.KeepSnapshots,
		Parallelism:   d.Parallelism,
		LogLevel:      d.LogLevel,
		LogTimeFormat: d.LogTimeFormat,
	}}
}

// Load parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes configuration text on top of the defaults. Unknown keys
// are rejected.
func Parse(data string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a jal.toml file. It returns
// the defaults if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	a := c.Analysis
	if a.MaxIterations <= 0 {
		return fmt.Errorf("%w: max-iterations must be positive, got %d", ErrInvalid, a.MaxIterations)
	}
	if a.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative, got %d", ErrInvalid, a.Parallelism)
	}
	if _, ok := verifier.LookupLogLevel(a.LogLevel); a.LogLevel != "" && !ok {
		return fmt.Errorf("%w: unknown log-level %q", ErrInvalid, a.LogLevel)
	}
	seen := make(map[string]bool, len(c.Classes))
	for i, cl := range c.Classes {
		if cl.Name == "" {
			return fmt.Errorf("%w: class #%d has no name", ErrInvalid, i+1)
		}
		if seen[cl.Name] {
			return fmt.Errorf("%w: class %s declared twice", ErrInvalid, cl.Name)
		}
		seen[cl.Name] = true
	}
	return nil
}

// Options returns analysis options reflecting the configuration. Fields the
// file does not cover (output, logger) are taken from base.
func (c *Config) Options(base verifier.Options) verifier.Options {
	o := base
	o.MaxIterations = c.Analysis.MaxIterations
	o.KeepSnapshots = c.Analysis.Snapshots
	o.Parallelism = c.Analysis.Parallelism
	o.LogLevel = c.Analysis.LogLevel
	o.LogTimeFormat = c.Analysis.LogTimeFormat
	if len(c.Classes) > 0 {
		o.Hierarchy = c.Hierarchy()
	}
	return o
}

// Hierarchy returns the declared classes layered over the default
// java/lang hierarchy.
func (c *Config) Hierarchy() verifier.ClassHierarchy {
	h := verifier.MapHierarchy{}
	for _, cl := range c.Classes {
		h.Add(verifier.ClassInfo{
			Name:       cl.Name,
			Super:      cl.Super,
			Interface:  cl.Interface,
			Interfaces: cl.Interfaces,
		})
	}
	return verifier.ChainHierarchy{h, verifier.DefaultHierarchy()}
}
