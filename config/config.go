package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PreorderLabel is the synthetic category label for pre-order books.
const PreorderLabel = "預購書"

// Config holds scraper configuration.
type Config struct {
	SiteOrigin          string
	CategoryURLTemplate string // {code} is replaced by the category code
	PreorderURL         string
	Categories          Registry
	UserAgent           string
	Timeout             time.Duration
	Delay               time.Duration
	RandomDelay         time.Duration
	RecentDays          int
	IncludePreorders    bool
	OutputFile          string
	OutputFormat        string // csv, json, dual, or none
	BatchSize           int
	DedupeMaxSize       int
	MetricsAddr         string
	Verbose             bool
	RespectRobotsTxt    bool
}

// DefaultConfig returns the settings used against books.com.tw.
func DefaultConfig() *Config {
	return &Config{
		SiteOrigin:          "https://www.books.com.tw",
		CategoryURLTemplate: "https://www.books.com.tw/web/books_nbtopm_{code}",
		PreorderURL:         "https://www.books.com.tw/web/sys_prebooks/books/",
		Categories:          DefaultRegistry(),
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Timeout:             30 * time.Second,
		Delay:               1500 * time.Millisecond,
		RandomDelay:         0,
		RecentDays:          7,
		IncludePreorders:    true,
		OutputFile:          "output/books.csv",
		OutputFormat:        "csv",
		BatchSize:           64,
		DedupeMaxSize:       10000,
		MetricsAddr:         "",
		Verbose:             false,
		RespectRobotsTxt:    false,
	}
}

// CategoryURL builds the listing URL for a category code.
func (c *Config) CategoryURL(code string) string {
	return strings.ReplaceAll(c.CategoryURLTemplate, "{code}", code)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateAbsoluteURL("site origin", c.SiteOrigin); err != nil {
		return err
	}
	if !strings.Contains(c.CategoryURLTemplate, "{code}") {
		return fmt.Errorf("category URL template must contain {code}")
	}
	if err := validateAbsoluteURL("category URL template", c.CategoryURL("00")); err != nil {
		return err
	}
	if err := validateAbsoluteURL("pre-order URL", c.PreorderURL); err != nil {
		return err
	}
	if c.Categories.Len() == 0 {
		return fmt.Errorf("category registry cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.RecentDays < 0 {
		return fmt.Errorf("recent days cannot be negative")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "none":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or none")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

func validateAbsoluteURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be absolute", name)
	}
	return nil
}
