package cfg

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
)

const (
	EnvGithubToken         = "GITHUB_TOKEN"
	EnvPrmergerGithubToken = "PRMERGER_GITHUB_TOKEN"
)

// DefaultEnvFile is loaded from the working directory, if it exists.
const DefaultEnvFile = ".env"

type Config struct {
	GithubAPIToken   string        `toml:"github_api_token"`
	Organization     string        `toml:"organization"`
	WhitelistUsers   []string      `toml:"whitelist_users"`
	Remote           string        `toml:"remote"`
	APIRetries       uint          `toml:"api_retries"`
	APIRetryInterval time.Duration `toml:"api_retry_interval"`
	StatusContext    string        `toml:"status_context"`
	LogFormat        string        `toml:"log_format"`
	LogTimeKey       string        `toml:"log_time_key"`
	LogLevel         string        `toml:"log_level"`
	RebaseCacheFile  string        `toml:"rebase_cache_file"`
	MetricsFile      string        `toml:"metrics_file"`
	Repositories     []*Repository `toml:"repository"`
}

// Repository contains settings for a single GitHub repository.
type Repository struct {
	// Name is the "org/repo" name of the repository.
	Name        string `toml:"name"`
	BaseBranch  string `toml:"base_branch"`
	FilterQuery string `toml:"filter_query"`
}

// Default returns a configuration with the default settings.
func Default() *Config {
	return &Config{
		Remote:           "origin",
		APIRetries:       3,
		APIRetryInterval: 2 * time.Second,
		StatusContext:    "prmerger",
		LogFormat:        "logfmt",
		LogTimeKey:       "time",
		LogLevel:         "info",
	}
}

// Load reads a TOML configuration from reader. Settings that are not
// defined keep their default value.
func Load(reader io.Reader) (*Config, error) {
	result := Default()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, result); err != nil {
		return nil, err
	}

	if err := result.validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// LoadFile reads the configuration file at path. If path is empty, the
// default configuration is returned.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	seen := map[string]struct{}{}

	for _, r := range c.Repositories {
		if r.Name == "" {
			return errors.New("repository: name is empty")
		}

		if _, exists := seen[r.Name]; exists {
			return fmt.Errorf("repository %q is defined multiple times", r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	return nil
}

// ApplyEnv loads the environment file envFile, if it exists, and
// overwrites the GitHub API token with the value of the environment
// variables PRMERGER_GITHUB_TOKEN or GITHUB_TOKEN.
// Variables that are already set in the environment take precedence over
// the ones in envFile.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading environment file %s failed: %w", envFile, err)
		}
	}

	for _, env := range []string{EnvPrmergerGithubToken, EnvGithubToken} {
		if val := os.Getenv(env); val != "" {
			c.GithubAPIToken = val
			return nil
		}
	}

	return nil
}

// Marshal writes the configuration in TOML format to writer.
// The GitHub API token is hidden.
func (c *Config) Marshal(writer io.Writer) error {
	cp := *c
	if cp.GithubAPIToken != "" {
		cp.GithubAPIToken = "**hidden**"
	}

	return toml.NewEncoder(writer).Encode(&cp)
}
