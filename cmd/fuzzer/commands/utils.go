/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the argv fuzzer commands. Provides configuration
loading from config files, .env files and the environment, and logging setup
used across all command implementations.
*/

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kleascm/argv-fuzzer/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the fuzzer
const EnvPrefix = "ARGFUZZ"

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// A missing .env is fine; a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	return nil
}

// SetupLogging creates the session logger from the log_* settings
func SetupLogging() (*logging.Logger, error) {
	config := logging.DefaultConfig()
	if level := viper.GetString("log_level"); level != "" {
		config.Level = logging.LogLevel(level)
	}
	if format := viper.GetString("log_format"); format != "" {
		config.Format = logging.LogFormat(format)
	}
	config.OutputDir = viper.GetString("log_dir")
	config.MaxFiles = viper.GetInt("log_max_files")

	logger, err := logging.NewLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// exitCodes reads a list of exit codes from key. Flags and config files give a
// list, the environment gives a single string such as "2,5" or "2 5".
func exitCodes(key string) ([]int, error) {
	var codes []int
	for _, entry := range viper.GetStringSlice(key) {
		fields := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
		for _, field := range fields {
			code, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid exit code %q in %s", field, key)
			}
			codes = append(codes, code)
		}
	}
	return codes, nil
}
