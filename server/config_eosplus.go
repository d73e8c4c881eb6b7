// Copyright 2024 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/echotools/eosplus/server/netid"
	"github.com/go-playground/validator/v10"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"
)

const maxLocalPlayersLimit = 8

// EOSPlusConfig is configuration relevant to the platform and EOS aggregation layer.
type EOSPlusConfig struct {
	UseEAS              bool `yaml:"use_eas" json:"use_eas" usage:"Log local players into Epic Account Services after the platform login. Default false."`
	UseEOSConnect       bool `yaml:"use_eos_connect" json:"use_eos_connect" usage:"Log local players into EOS Connect after the platform login. Default false."`
	UseEASForFriends    bool `yaml:"use_eas_for_friends" json:"use_eas_for_friends" usage:"Merge the EAS friends list into the platform friends list. Default false."`
	MirrorPresenceToEAS bool `yaml:"mirror_presence_to_eas" json:"mirror_presence_to_eas" usage:"Copy presence written to the platform into EAS. Default false."`

	MaxLocalPlayers   int    `yaml:"max_local_players" json:"max_local_players" usage:"Number of local player slots. Default 4." validate:"gte=1,lte=8"`
	PlatformSubsystem string `yaml:"platform_subsystem" json:"platform_subsystem" usage:"Name of the active platform subsystem, for example STEAM or PS4. Default STEAM." validate:"required"`

	Logger  *LoggerConfig  `yaml:"logger" json:"logger" usage:"Logger levels and output." validate:"required"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics" usage:"Metrics reporting." validate:"required"`
}

func NewEOSPlusConfig() *EOSPlusConfig {
	return &EOSPlusConfig{
		UseEAS:              false,
		UseEOSConnect:       false,
		UseEASForFriends:    false,
		MirrorPresenceToEAS: false,
		MaxLocalPlayers:     4,
		PlatformSubsystem:   netid.SteamSubsystem,
		Logger:              NewLoggerConfig(),
		Metrics:             NewMetricsConfig(),
	}
}

func (cfg *EOSPlusConfig) Clone() *EOSPlusConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	cfgCopy.Logger = cfg.Logger.Clone()
	cfgCopy.Metrics = cfg.Metrics.Clone()
	return &cfgCopy
}

// EOSLoginEnabled reports whether a platform login is followed by an EOS login.
func (cfg *EOSPlusConfig) EOSLoginEnabled() bool {
	return cfg.UseEAS || cfg.UseEOSConnect
}

// PlatformTag is the subsystem tag written into composite ids issued by this process.
func (cfg *EOSPlusConfig) PlatformTag() netid.SubsystemTag {
	return netid.TagFromName(cfg.PlatformSubsystem)
}

func (cfg *EOSPlusConfig) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid eosplus config: %w", err)
	}
	if !netid.KnownSubsystem(cfg.PlatformSubsystem) {
		return fmt.Errorf("invalid eosplus config: unknown platform subsystem %q", cfg.PlatformSubsystem)
	}
	if cfg.MaxLocalPlayers > maxLocalPlayersLimit {
		return fmt.Errorf("invalid eosplus config: max_local_players must be at most %d", maxLocalPlayersLimit)
	}
	return nil
}

// LoadEOSPlusConfig reads a YAML file over the defaults and validates the result.
func LoadEOSPlusConfig(path string) (*EOSPlusConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseEOSPlusConfig(data)
}

func ParseEOSPlusConfig(data []byte) (*EOSPlusConfig, error) {
	cfg := NewEOSPlusConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoggerConfig is configuration relevant to logging levels and output.
type LoggerConfig struct {
	Level      string `yaml:"level" json:"level" usage:"Log level to set. Valid values are 'debug', 'info', 'warn', 'error'. Default 'info'." validate:"oneof=debug info warn error"`
	Stdout     bool   `yaml:"stdout" json:"stdout" usage:"Log to standard console output (as well as to a log file if set). Default true."`
	File       string `yaml:"file" json:"file" usage:"Log output to a file (as well as stdout if set). Make sure that the directory and the file is writable."`
	Rotation   bool   `yaml:"rotation" json:"rotation" usage:"Rotate log files. Default is false."`
	MaxSize    int    `yaml:"max_size" json:"max_size" usage:"The maximum size in megabytes of the log file before it gets rotated. It defaults to 100 megabytes."`
	MaxAge     int    `yaml:"max_age" json:"max_age" usage:"The maximum number of days to retain old log files based on the timestamp encoded in their filename. The default is not to remove old log files based on age."`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" usage:"The maximum number of old log files to retain. The default is to retain all old log files (though MaxAge may still cause them to get deleted.)"`
	LocalTime  bool   `yaml:"local_time" json:"local_time" usage:"This determines if the time used for formatting the timestamps in backup files is the computer's local time. The default is to use UTC time."`
	Compress   bool   `yaml:"compress" json:"compress" usage:"This determines if the rotated log files should be compressed using gzip."`
	Format     string `yaml:"format" json:"format" usage:"Set logging output format. Can either be 'JSON' or 'Stackdriver'. Default is 'JSON'."`
}

func NewLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      "info",
		Stdout:     true,
		File:       "",
		Rotation:   false,
		MaxSize:    100,
		MaxAge:     0,
		MaxBackups: 0,
		LocalTime:  false,
		Compress:   false,
		Format:     "json",
	}
}

func (cfg *LoggerConfig) Clone() *LoggerConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	return &cfgCopy
}

// MetricsConfig is configuration relevant to metrics capturing and output.
type MetricsConfig struct {
	ReportingFreqSec int    `yaml:"reporting_freq_sec" json:"reporting_freq_sec" usage:"Frequency of metrics exports. Default is 60 seconds." validate:"gte=1"`
	Namespace        string `yaml:"namespace" json:"namespace" usage:"Namespace for Prometheus metrics. It will always prepend node name."`
	Prefix           string `yaml:"prefix" json:"prefix" usage:"Prefix for metric names. Default is 'eosplus', empty string '' disables the prefix."`
	PrometheusPort   int    `yaml:"prometheus_port" json:"prometheus_port" usage:"Port to expose Prometheus. If '0' Prometheus exports are disabled."`
}

func NewMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ReportingFreqSec: 60,
		Namespace:        "",
		Prefix:           "eosplus",
		PrometheusPort:   0,
	}
}

func (cfg *MetricsConfig) Clone() *MetricsConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	return &cfgCopy
}

// ReportingInterval returns the reporting frequency as a time.Duration
func (cfg *MetricsConfig) ReportingInterval() time.Duration {
	return time.Duration(cfg.ReportingFreqSec) * time.Second
}

// Settings holds the live configuration. Components read a snapshot per decision, so
// the host may swap the configuration between ticks.
type Settings struct {
	ptr *atomic.Pointer[EOSPlusConfig]
}

func NewSettings(cfg *EOSPlusConfig) *Settings {
	if cfg == nil {
		cfg = NewEOSPlusConfig()
	}
	return &Settings{ptr: atomic.NewPointer(cfg.Clone())}
}

func (s *Settings) Load() *EOSPlusConfig {
	return s.ptr.Load()
}

var ErrNilConfig = errors.New("nil configuration")

// Store replaces the live configuration with a copy of cfg. A nil or invalid cfg is
// rejected and the current configuration stays in place.
func (s *Settings) Store(cfg *EOSPlusConfig) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.ptr.Store(cfg.Clone())
	return nil
}

// Update applies fn to a copy of the current configuration and stores the result.
func (s *Settings) Update(fn func(cfg *EOSPlusConfig)) {
	cfg := s.Load().Clone()
	fn(cfg)
	s.ptr.Store(cfg)
}
