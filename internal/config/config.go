/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package config provides configuration management for the faststart CLI
// and server using viper: defaults, a YAML config file, and environment
// variables under the FASTSTART_ prefix.
package config

import (
	"github.com/spf13/viper"
)

const (
	defaultMoovCapBytes = 512 * 1024 * 1024
	defaultChunkSize    = 64 * 1024
	defaultServerAddr   = ":8080"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Config holds all configuration for cmd/faststart.
type Config struct {
	Optimize OptimizeConfig `mapstructure:"optimize"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OptimizeConfig controls the core optimizer's resource limits.
type OptimizeConfig struct {
	MoovCapBytes int64 `mapstructure:"moov_cap_bytes"`
	ChunkSize    int   `mapstructure:"chunk_size"`
}

// ServerConfig controls the HTTP + WebSocket job surface.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	S3Bucket string `mapstructure:"s3_bucket"`
}

// LoggingConfig controls the slog handler cmd/faststart installs.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default value on v, so a config file or
// environment variable only needs to override what differs.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("optimize.moov_cap_bytes", defaultMoovCapBytes)
	v.SetDefault("optimize.chunk_size", defaultChunkSize)
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.s3_bucket", "")
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
}

// Load unmarshals v into a Config, assuming SetDefaults and any config
// file / flag binding has already happened on v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
