package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Parser.Engine != "css" && cfg.Parser.Engine != "xpath" {
		return fmt.Errorf("parser.engine must be 'css' or 'xpath', got %q", cfg.Parser.Engine)
	}

	if err := ValidateURL(cfg.Scrape.BaseURL); err != nil {
		return fmt.Errorf("scrape.base_url: %w", err)
	}
	if cfg.Scrape.Day != "" {
		if _, err := time.Parse("2006-01-02", cfg.Scrape.Day); err != nil {
			return fmt.Errorf("scrape.day must be YYYY-MM-DD, got %q", cfg.Scrape.Day)
		}
	}
	if cfg.Scrape.MaxStories < 1 || cfg.Scrape.MaxStories > 30 {
		return fmt.Errorf("scrape.max_stories must be 1-30, got %d", cfg.Scrape.MaxStories)
	}
	if cfg.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape.concurrency must be >= 1, got %d", cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.Concurrency > 8 {
		return fmt.Errorf("scrape.concurrency must be <= 8, got %d", cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.MaxRetries < 0 {
		return fmt.Errorf("scrape.max_retries must be >= 0, got %d", cfg.Scrape.MaxRetries)
	}
	if cfg.Scrape.PolitenessDelay < 0 {
		return fmt.Errorf("scrape.politeness_delay must be >= 0")
	}

	switch cfg.Storage.Type {
	case "json", "jsonl":
		if cfg.Storage.OutputPath == "" {
			return fmt.Errorf("storage.output_path must not be empty")
		}
	case "mongo":
		if cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri must not be empty")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, mongo)", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a scrape target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
