package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for hnsnap.
type Config struct {
	Fetcher Fetcher `mapstructure:"fetcher" yaml:"fetcher"`
	Parser  Parser  `mapstructure:"parser"  yaml:"parser"`
	Scrape  Scrape  `mapstructure:"scrape"  yaml:"scrape"`
	Storage Storage `mapstructure:"storage" yaml:"storage"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`
}

// Fetcher controls the HTTP/browser fetcher.
type Fetcher struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http or browser
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
}

// Parser selects the markup parsing engine.
type Parser struct {
	Engine string `mapstructure:"engine" yaml:"engine"` // css or xpath
}

// Scrape controls what gets scraped and how aggressively.
type Scrape struct {
	BaseURL         string        `mapstructure:"base_url"         yaml:"base_url"`
	Day             string        `mapstructure:"day"              yaml:"day"` // YYYY-MM-DD, empty = previous day
	MaxStories      int           `mapstructure:"max_stories"      yaml:"max_stories"`
	FetchComments   bool          `mapstructure:"fetch_comments"   yaml:"fetch_comments"`
	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	MaxRetries      int           `mapstructure:"max_retries"      yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"      yaml:"retry_delay"`
}

// Storage controls snapshot output.
type Storage struct {
	Type       string `mapstructure:"type"        yaml:"type"` // json, jsonl, mongo
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	MongoURI   string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoColl  string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// Logging controls logging behavior.
type Logging struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a conservative Config: sequential fetches, no
// retries, output.json in the working directory.
func Default() *Config {
	return &Config{
		Fetcher: Fetcher{
			Type:            "http",
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Parser: Parser{
			Engine: "css",
		},
		Scrape: Scrape{
			BaseURL:         "https://news.ycombinator.com",
			MaxStories:      30,
			FetchComments:   true,
			Concurrency:     1,
			PolitenessDelay: 500 * time.Millisecond,
			MaxRetries:      0,
			RetryDelay:      2 * time.Second,
		},
		Storage: Storage{
			Type:       "json",
			OutputPath: "output.json",
			MongoURI:   "mongodb://localhost:27017",
			MongoDB:    "hnsnap",
			MongoColl:  "stories",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
