// Package config loads and validates squidctl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the production lobstr.io API endpoint.
const DefaultBaseURL = "https://api.lobstr.io/v1"

// DefaultCrawler is the Seloger search crawler template registered with
// lobstr.io. Overridable via LOBSTR_CRAWLER for other crawler templates.
const DefaultCrawler = "78f5839ee4b97c30e67eec391b907dd0"

// Config captures everything one lifecycle pass needs: credentials and
// endpoint from the environment, run parameters from the command line.
type Config struct {
	// Environment-backed settings.
	APIKey             string
	BaseURL            string
	Crawler            string
	HTTPTimeoutSeconds int

	// Command-line run parameters.
	Concurrency    int
	MaxPages       int
	AnnonceDetails bool
	TasksFile      string
	OutputFile     string
}

// Load reads the environment-backed settings. Run parameters are filled
// in by the command layer before Validate is called.
func Load(v *viper.Viper) Config {
	v.SetEnvPrefix("LOBSTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return Config{
		APIKey:             v.GetString("api_key"),
		BaseURL:            v.GetString("api_url"),
		Crawler:            v.GetString("crawler"),
		HTTPTimeoutSeconds: v.GetInt("http_timeout_seconds"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", DefaultBaseURL)
	v.SetDefault("crawler", DefaultCrawler)
	v.SetDefault("http_timeout_seconds", 30)
}

// Validate enforces required values and reasonable limits. The API key
// check runs here, before any network call is attempted.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("LOBSTR_API_KEY environment variable not set")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	if c.Crawler == "" {
		return fmt.Errorf("crawler must not be empty")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("http_timeout_seconds must be > 0")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max-pages must be >= 1, got %d", c.MaxPages)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output path must not be empty")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
