package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/1broseidon/list-windows/internal/runtimepath"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// LISTWINDOWS_SOCKET_PATH.
const EnvPrefix = "LISTWINDOWS"

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML path -> last writer
	File    string            // loaded config file, empty when absent
}

var envKeys = map[string]string{
	"socket_path":        "SOCKET_PATH",
	"snapshot_path":      "SNAPSHOT_PATH",
	"desktop_entry_dirs": "DESKTOP_ENTRY_DIRS",
	"log_level":          "LOG_LEVEL",
	"read_timeout":       "READ_TIMEOUT",
	"client_timeout":     "CLIENT_TIMEOUT",
	"metrics_addr":       "METRICS_ADDR",
}

// DefaultConfigPath returns the config.yaml location under the user config dir.
func DefaultConfigPath() (string, error) {
	return runtimepath.ConfigPath()
}

// Load reads the configuration from the standard location. A missing file
// yields the defaults plus environment overrides.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and reports where each setting came from.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath applies, in order: defaults, the YAML file at path (if it
// exists), LISTWINDOWS_* environment variables. The result is validated.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	sources := map[string]Source{}
	res := &LoadResult{Config: cfg, Sources: sources}

	if exists, err := pathExists(path); err != nil {
		return nil, err
	} else if exists {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read: %w", path, err)
		}
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: failed to parse: %w", path, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err == nil {
			for key, src := range collectSources(&doc, path) {
				sources[key] = src
			}
		}
		res.File = path
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	for path, key := range envKeys {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
			sources[path] = Source{Kind: SourceEnv, File: EnvPrefix + "_" + key}
		}
	}

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}
	return res, nil
}

func expandPaths(cfg *Config) error {
	var err error
	if cfg.SocketPath, err = expandHome(cfg.SocketPath); err != nil {
		return err
	}
	if cfg.SnapshotPath, err = expandHome(cfg.SnapshotPath); err != nil {
		return err
	}
	for i, dir := range cfg.DesktopEntryDirs {
		if cfg.DesktopEntryDirs[i], err = expandHome(dir); err != nil {
			return err
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		out[key.Value] = Source{Kind: SourceFile, File: file, Line: val.Line, Column: val.Column}
		if val.Kind == yaml.SequenceNode {
			for j, item := range val.Content {
				out[fmt.Sprintf("%s.%d", key.Value, j)] = Source{Kind: SourceFile, File: file, Line: item.Line, Column: item.Column}
			}
		}
	}
	return out
}

func attachSourceContext(err error, sources map[string]Source) error {
	verr, ok := err.(*ValidationError)
	if !ok || verr == nil || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
