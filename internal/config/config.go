// Package config loads the aiflow engine configuration.
//
// The only configuration source is config/ai-workflow.config.json under the
// project root. A missing file or missing key falls back to built-in
// defaults; actual parse errors surface to the caller.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/aiflow-dev/aiflow/internal/constants"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

// Config is the engine configuration.
type Config struct {
	// AutoActions configures automatic behaviour after lifecycle operations.
	AutoActions AutoActions `mapstructure:"autoActions" json:"autoActions"`
}

// AutoActions groups automatic-action settings.
type AutoActions struct {
	// Task holds task-scoped auto-action settings.
	Task TaskActions `mapstructure:"task" json:"task"`
}

// TaskActions holds task-scoped auto-action settings.
type TaskActions struct {
	// Complete holds settings applied when a task is completed.
	Complete CompleteActions `mapstructure:"complete" json:"complete"`
}

// CompleteActions holds settings applied on task completion.
type CompleteActions struct {
	// AutoActivateNext activates the highest-priority oldest queued task
	// after a completion. Defaults to true.
	AutoActivateNext bool `mapstructure:"autoActivateNext" json:"autoActivateNext"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AutoActions: AutoActions{
			Task: TaskActions{
				Complete: CompleteActions{AutoActivateNext: true},
			},
		},
	}
}

// setDefaults registers built-in defaults on the viper instance so absent
// keys resolve to them after a partial config file is read.
func setDefaults(v *viper.Viper) {
	v.SetDefault("autoActions.task.complete.autoActivateNext", true)
}

// Load reads the configuration for the given project root. A missing config
// file returns the defaults; a malformed file returns an error.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(projectRoot, constants.ConfigRelPath))
	v.SetConfigType("json")
	v.SetEnvPrefix("AIFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if isConfigNotFound(err) {
			return Default(), nil
		}
		return nil, aferrors.Wrap(err, "failed to read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return nil, aferrors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// isConfigNotFound returns true for both viper's named-path miss and a plain
// os.IsNotExist from SetConfigFile.
func isConfigNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	if stderrors.As(err, &notFound) {
		return true
	}
	var pathErr *os.PathError
	return stderrors.As(err, &pathErr) && os.IsNotExist(pathErr)
}
