package config

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. NEARBY_API_BASE_URL.
const EnvPrefix = "NEARBY"

var configDir string
var configFilePath string
var credentialsPath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\nearby\cli
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "nearby", "cli"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/nearby/cli
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nearby", "cli"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "Nearby", "cli", "config.toml")}
	}

	return []string{
		"/etc/nearby/cli/config.toml",
		"/usr/local/etc/nearby/cli/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	// Determine config directory
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	// A fresh viper per Init so repeated Init calls (tests) don't leak keys
	viper.Reset()
	viper.SetConfigType("toml")

	setDefaults()

	// .env next to the config file; existing environment wins
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Load system config first (if exists) - serves as foundation
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.MergeInConfig()
			break // Use first system config found
		}
	}

	// Load user config second (overrides system config)
	viper.SetConfigFile(configFilePath)
	if _, err := os.Stat(configFilePath); err == nil {
		if err := viper.MergeInConfig(); err != nil {
			return err
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8787/api/v1")
	viper.SetDefault("api.ws_url", "ws://localhost:8787/api/v1/ws")
	viper.SetDefault("api.timeout", 30)

	viper.SetDefault("paging.page_size", 20)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.path", filepath.Join(configDir, "cache.db"))

	viper.SetDefault("toast.buffer", 16)

	viper.SetDefault("output.format", "text")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "nearby-cli.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	// Expand tilde in path-like configuration keys
	if key == "cache.path" || key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSeconds returns an integer-seconds configuration value as a duration
func GetSeconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

// Set sets a value for this process only
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string configuration value and persists it to the user
// config file. Only keys already in that file plus key are written, so
// environment and system overrides stay out of it.
func SetString(key string, value string) error {
	file := viper.New()
	file.SetConfigType("toml")
	file.SetConfigFile(configFilePath)
	if _, err := os.Stat(configFilePath); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return err
		}
	}
	file.Set(key, value)
	if err := file.WriteConfigAs(configFilePath); err != nil {
		return err
	}
	viper.Set(key, value)
	return nil
}

// IsKnownKey reports whether key has a default, i.e. is a setting the CLI reads
func IsKnownKey(key string) bool {
	return slices.Contains(viper.AllKeys(), strings.ToLower(key))
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}
