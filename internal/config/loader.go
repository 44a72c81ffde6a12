package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBinary is the executable searched for on PATH.
	DefaultBinary = "qwen"
	// DefaultModeFlag is prepended to the forwarded arguments.
	DefaultModeFlag = "--experimental-acp"
	// DefaultName tags every log line.
	DefaultName = "Qwen ACP Wrapper"
	// LogFileName is the durable log's file name under the home and temp roots.
	LogFileName = "qwen-acp-debug.log"
)

// Settings holds the wrapper's environment-level configuration. Values come
// from an optional YAML file and are overridden by environment variables.
type Settings struct {
	Binary      string `yaml:"binary"`
	ModeFlag    string `yaml:"modeFlag"`
	LogPath     string `yaml:"logPath"`
	Name        string `yaml:"name"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Binary:   DefaultBinary,
		ModeFlag: DefaultModeFlag,
		Name:     DefaultName,
	}
}

// Load reads settings from a YAML file on top of the defaults. Unknown keys
// are rejected.
func Load(path string) (Settings, error) {
	settings := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return settings, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve settings path: %w", err)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return Settings{}, fmt.Errorf("open settings file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc Settings
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	settings.merge(doc)
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", absPath, err)
	}
	return settings, nil
}

// FromEnv loads the file named by ACPWRAP_CONFIG (if any) and applies the
// environment overrides. QWEN_ACP_LOG_PATH is honoured for the log path
// alongside ACPWRAP_LOG_PATH.
func FromEnv() (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("ACPWRAP")
	v.AutomaticEnv()
	if err := v.BindEnv("log_path", "ACPWRAP_LOG_PATH", "QWEN_ACP_LOG_PATH"); err != nil {
		return Settings{}, fmt.Errorf("bind log path env: %w", err)
	}

	settings, err := Load(v.GetString("config"))
	if err != nil {
		return Settings{}, err
	}
	settings.merge(Settings{
		Binary:      v.GetString("binary"),
		ModeFlag:    v.GetString("mode_flag"),
		LogPath:     v.GetString("log_path"),
		Name:        v.GetString("name"),
		MetricsAddr: v.GetString("metrics_addr"),
	})
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *Settings) merge(o Settings) {
	if o.Binary != "" {
		s.Binary = o.Binary
	}
	if o.ModeFlag != "" {
		s.ModeFlag = o.ModeFlag
	}
	if o.LogPath != "" {
		s.LogPath = o.LogPath
	}
	if o.Name != "" {
		s.Name = o.Name
	}
	if o.MetricsAddr != "" {
		s.MetricsAddr = o.MetricsAddr
	}
}

// Validate rejects settings that would let the resolver escape PATH entries or
// produce an unusable child command line.
func (s Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.Binary) == "":
		return &Error{Field: "binary", Reason: "must not be empty"}
	case s.Binary == "." || s.Binary == "..":
		return &Error{Field: "binary", Value: s.Binary, Reason: "must be a file name"}
	case strings.ContainsAny(s.Binary, `/\`):
		return &Error{Field: "binary", Value: s.Binary, Reason: "must be a bare name without path separators"}
	case !strings.HasPrefix(s.ModeFlag, "-"):
		return &Error{Field: "modeFlag", Value: s.ModeFlag, Reason: "must be a flag"}
	}
	return nil
}

// LogCandidates returns the durable log destinations in the order they should
// be tried: the configured override, the home directory, then the temp dir.
// A relative override is taken relative to the working directory; one that
// cannot be resolved is left out so the fallbacks still apply.
func (s Settings) LogCandidates(home string) []string {
	candidates := make([]string, 0, 3)
	if s.LogPath != "" {
		if abs, err := filepath.Abs(s.LogPath); err == nil {
			candidates = append(candidates, abs)
		}
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, "."+LogFileName))
	}
	return append(candidates, filepath.Join(os.TempDir(), LogFileName))
}
