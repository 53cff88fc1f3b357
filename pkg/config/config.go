package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent with every API query and image download
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultMinFileSize is the smallest image, in bytes, that is kept (100KB)
const DefaultMinFileSize = 102400

// Config holds all configuration options for the wallpaper downloader
type Config struct {
	// Image sources and their query options
	Sources SourcesConfig `yaml:"sources" json:"sources"`

	// Download and quality filter settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Zip packaging
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for API queries and image GETs
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Download history index
	History HistoryConfig `yaml:"history" json:"history"`

	// Web form server
	Server ServerConfig `yaml:"server" json:"server"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourcesConfig groups the per-source settings
type SourcesConfig struct {
	Wallhaven WallhavenConfig `yaml:"wallhaven" json:"wallhaven"`
	Reddit    RedditConfig    `yaml:"reddit" json:"reddit"`
	Unsplash  UnsplashConfig  `yaml:"unsplash" json:"unsplash"`
	Pixabay   PixabayConfig   `yaml:"pixabay" json:"pixabay"`
	Pexels    PexelsConfig    `yaml:"pexels" json:"pexels"`
	Custom    []CustomSource  `yaml:"custom" json:"custom"`
}

// SourceCommon holds the options every source shares
type SourceCommon struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Limit   int  `yaml:"limit" json:"limit"`
}

// WallhavenConfig holds wallhaven.cc search options
type WallhavenConfig struct {
	SourceCommon `yaml:",inline" json:",inline"`
	APIKey       string `yaml:"api_key" json:"api_key"`
	Categories   string `yaml:"categories" json:"categories"`
	Purity       string `yaml:"purity" json:"purity"`
	Resolutions  string `yaml:"resolutions" json:"resolutions"`
	Sorting      string `yaml:"sorting" json:"sorting"`
	Order        string `yaml:"order" json:"order"`
	PerPage      int    `yaml:"per_page" json:"per_page"`
}

// RedditConfig holds subreddit search options
type RedditConfig struct {
	SourceCommon  `yaml:",inline" json:",inline"`
	Subreddits    []string `yaml:"subreddits" json:"subreddits"`
	Sort          string   `yaml:"sort" json:"sort"`
	Time          string   `yaml:"time" json:"time"`
	MaxPerRequest int      `yaml:"max_per_request" json:"max_per_request"`
}

// UnsplashConfig holds Unsplash options. Without an access key the random
// redirector is used.
type UnsplashConfig struct {
	SourceCommon `yaml:",inline" json:",inline"`
	AccessKey    string `yaml:"access_key" json:"access_key"`
	Resolution   string `yaml:"resolution" json:"resolution"`
}

// PixabayConfig holds Pixabay options
type PixabayConfig struct {
	SourceCommon `yaml:",inline" json:",inline"`
	APIKey       string `yaml:"api_key" json:"api_key"`
	ImageType    string `yaml:"image_type" json:"image_type"`
	MinWidth     int    `yaml:"min_width" json:"min_width"`
	MinHeight    int    `yaml:"min_height" json:"min_height"`
	PerPage      int    `yaml:"per_page" json:"per_page"`
}

// PexelsConfig holds Pexels options
type PexelsConfig struct {
	SourceCommon `yaml:",inline" json:",inline"`
	APIKey       string `yaml:"api_key" json:"api_key"`
	Orientation  string `yaml:"orientation" json:"orientation"`
	PerPage      int    `yaml:"per_page" json:"per_page"`
}

// CustomSource describes a JSON search endpoint whose image URLs are
// selected with a JSONPath expression
type CustomSource struct {
	SourceCommon `yaml:",inline" json:",inline"`
	Name         string            `yaml:"name" json:"name"`
	URL          string            `yaml:"url" json:"url"`
	ResultsPath  string            `yaml:"results_path" json:"results_path"`
	Headers      map[string]string `yaml:"headers" json:"headers"`
	PerPage      int               `yaml:"per_page" json:"per_page"`
}

// DownloadConfig holds download and quality filter configuration
type DownloadConfig struct {
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
	APITimeout          time.Duration `yaml:"api_timeout" json:"api_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	MinFileSize         int64         `yaml:"min_file_size" json:"min_file_size"`
	MinWidth            int           `yaml:"min_width" json:"min_width"`
	MinHeight           int           `yaml:"min_height" json:"min_height"`
	Filter              string        `yaml:"filter" json:"filter"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory   string `yaml:"base_directory" json:"base_directory"`
	FolderPattern   string `yaml:"folder_pattern" json:"folder_pattern"`
	FileNamePattern string `yaml:"file_name_pattern" json:"file_name_pattern"`
	SaveMetadata    bool   `yaml:"save_metadata" json:"save_metadata"`
	Thumbnails      bool   `yaml:"thumbnails" json:"thumbnails"`
	ThumbnailWidth  uint   `yaml:"thumbnail_width" json:"thumbnail_width"`
}

// ArchiveConfig controls zip packaging of a finished run
type ArchiveConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	KeepFiles bool `yaml:"keep_files" json:"keep_files"`
}

// RateLimitConfig holds rate limiting configuration, applied per source
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
	// search API pages per minute; 0 leaves page requests to the token bucket alone
	APICallsPerMinute int `yaml:"api_calls_per_minute" json:"api_calls_per_minute"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// HistoryConfig controls the persistent download history
type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Path      string `yaml:"path" json:"path"`
	SkipKnown bool   `yaml:"skip_known" json:"skip_known"`
}

// ServerConfig holds the web form settings
type ServerConfig struct {
	Address         string `yaml:"address" json:"address"`
	OutputDirectory string `yaml:"output_directory" json:"output_directory"`
	DefaultQuery    string `yaml:"default_query" json:"default_query"`
	DefaultSource   string `yaml:"default_source" json:"default_source"`
	DefaultCount    int    `yaml:"default_count" json:"default_count"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Wallhaven: WallhavenConfig{
				SourceCommon: SourceCommon{Enabled: true, Limit: 10},
				Categories:   "111",
				Purity:       "100",
				Resolutions:  "1920x1080",
				Sorting:      "toplist",
				Order:        "desc",
				PerPage:      24,
			},
			Reddit: RedditConfig{
				SourceCommon:  SourceCommon{Enabled: true, Limit: 10},
				Subreddits:    []string{"wallpaper", "wallpapers", "WidescreenWallpaper"},
				Sort:          "top",
				Time:          "all",
				MaxPerRequest: 25,
			},
			Unsplash: UnsplashConfig{
				SourceCommon: SourceCommon{Enabled: true, Limit: 5},
				Resolution:   "1920x1080",
			},
			Pixabay: PixabayConfig{
				SourceCommon: SourceCommon{Enabled: true, Limit: 20},
				ImageType:    "photo",
				MinWidth:     1920,
				MinHeight:    1080,
				PerPage:      50,
			},
			Pexels: PexelsConfig{
				SourceCommon: SourceCommon{Enabled: true, Limit: 20},
				Orientation:  "landscape",
				PerPage:      30,
			},
		},
		Download: DownloadConfig{
			UserAgent:           DefaultUserAgent,
			APITimeout:          10 * time.Second,
			DownloadTimeout:     20 * time.Second,
			ConcurrentDownloads: 3,
			MinFileSize:         DefaultMinFileSize,
		},
		Output: OutputConfig{
			BaseDirectory:   ".",
			FolderPattern:   "{query}_Wallpapers",
			FileNamePattern: "{source}_{query}_{n}.{ext}",
			ThumbnailWidth:  320,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
			APICallsPerMinute: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		History: HistoryConfig{
			Enabled:   true,
			SkipKnown: true,
		},
		Server: ServerConfig{
			Address:         ":5000",
			OutputDirectory: "AgnosticWallpapers",
			DefaultQuery:    "AE86",
			DefaultSource:   "Reddit",
			DefaultCount:    10,
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// API keys
	if key := os.Getenv("WALLGRAB_WALLHAVEN_KEY"); key != "" {
		c.Sources.Wallhaven.APIKey = key
	}
	if key := os.Getenv("WALLGRAB_UNSPLASH_KEY"); key != "" {
		c.Sources.Unsplash.AccessKey = key
	}
	if key := os.Getenv("WALLGRAB_PIXABAY_KEY"); key != "" {
		c.Sources.Pixabay.APIKey = key
	}
	if key := os.Getenv("WALLGRAB_PEXELS_KEY"); key != "" {
		c.Sources.Pexels.APIKey = key
	}

	if userAgent := os.Getenv("WALLGRAB_USER_AGENT"); userAgent != "" {
		c.Download.UserAgent = userAgent
	}

	if rpm := os.Getenv("WALLGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid WALLGRAB_REQUESTS_PER_MINUTE: %w", err)
		}
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if concurrent := os.Getenv("WALLGRAB_CONCURRENT_DOWNLOADS"); concurrent != "" {
		val, err := strconv.Atoi(concurrent)
		if err != nil {
			return fmt.Errorf("invalid WALLGRAB_CONCURRENT_DOWNLOADS: %w", err)
		}
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if minSize := os.Getenv("WALLGRAB_MIN_FILE_SIZE"); minSize != "" {
		val, err := strconv.ParseInt(minSize, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WALLGRAB_MIN_FILE_SIZE: %w", err)
		}
		c.Download.MinFileSize = val
	}

	if outputDir := os.Getenv("WALLGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if addr := os.Getenv("WALLGRAB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}

	if notifEnabled := os.Getenv("WALLGRAB_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("WALLGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// SearchPaths lists the config file locations checked when none is given
func SearchPaths() []string {
	home := os.Getenv("HOME")
	return []string{
		"wallgrab.yaml",
		"wallgrab.yml",
		".wallgrab.yaml",
		".wallgrab.yml",
		filepath.Join(home, ".config", "wallgrab", "config.yaml"),
		filepath.Join(home, ".config", "wallgrab", "config.yml"),
		filepath.Join(home, ".wallgrab.yaml"),
	}
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	for _, loc := range SearchPaths() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Download settings
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.APITimeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MinFileSize < 0 {
		errs = append(errs, errors.New("min file size cannot be negative"))
	}
	if c.Download.MinWidth < 0 || c.Download.MinHeight < 0 {
		errs = append(errs, errors.New("min resolution cannot be negative"))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.APICallsPerMinute < 0 {
		errs = append(errs, errors.New("API calls per minute cannot be negative"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	// Sources
	for name, limit := range map[string]int{
		"wallhaven": c.Sources.Wallhaven.Limit,
		"reddit":    c.Sources.Reddit.Limit,
		"unsplash":  c.Sources.Unsplash.Limit,
		"pixabay":   c.Sources.Pixabay.Limit,
		"pexels":    c.Sources.Pexels.Limit,
	} {
		if limit < 0 {
			errs = append(errs, fmt.Errorf("%s limit cannot be negative", name))
		}
	}
	if len(c.Sources.Reddit.Subreddits) == 0 {
		errs = append(errs, errors.New("at least one subreddit is required"))
	}
	seen := map[string]bool{}
	for i, custom := range c.Sources.Custom {
		name := strings.ToLower(strings.TrimSpace(custom.Name))
		if name == "" {
			errs = append(errs, fmt.Errorf("custom source %d: name is required", i))
			continue
		}
		if seen[name] || isBuiltinSource(name) {
			errs = append(errs, fmt.Errorf("custom source %q: duplicate name", custom.Name))
		}
		seen[name] = true
		if custom.URL == "" || !strings.Contains(custom.URL, "{query}") {
			errs = append(errs, fmt.Errorf("custom source %q: url must contain {query}", custom.Name))
		}
		if custom.ResultsPath == "" {
			errs = append(errs, fmt.Errorf("custom source %q: results_path is required", custom.Name))
		}
	}

	// Output settings
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FileNamePattern == "" || !strings.Contains(c.Output.FileNamePattern, "{n}") {
		errs = append(errs, errors.New("file name pattern must contain {n}"))
	}
	if c.Archive.Enabled && !c.Archive.KeepFiles && c.ArchiveRemovesBase(c.OutputDirectory("query", nil)) {
		errs = append(errs, errors.New("folder pattern must name a subdirectory of the output directory when archiving removes the downloaded files"))
	}

	// Server
	if c.Server.DefaultCount <= 0 {
		errs = append(errs, errors.New("server default count must be positive"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func isBuiltinSource(name string) bool {
	switch name {
	case "wallhaven", "reddit", "unsplash", "pixabay", "pexels":
		return true
	}
	return false
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent-downloads"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if minSize, ok := flags["min-size"].(int64); ok && minSize >= 0 {
		c.Download.MinFileSize = minSize
	}
	if filter, ok := flags["filter"].(string); ok && filter != "" {
		c.Download.Filter = filter
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if archive, ok := flags["archive"].(bool); ok {
		c.Archive.Enabled = archive
	}
	if keep, ok := flags["keep-files"].(bool); ok {
		c.Archive.KeepFiles = keep
	}
	if history, ok := flags["history"].(bool); ok {
		c.History.Enabled = history
	}
	if thumbs, ok := flags["thumbnails"].(bool); ok {
		c.Output.Thumbnails = thumbs
	}
	if metadata, ok := flags["metadata"].(bool); ok {
		c.Output.SaveMetadata = metadata
	}
	if addr, ok := flags["address"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if serverDir, ok := flags["server-output"].(string); ok && serverDir != "" {
		c.Server.OutputDirectory = serverDir
	}
	if notifications, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notifications
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".wallgrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// SourceLimit returns the configured per-run limit for a built-in or custom
// source, and whether the source is enabled
func (c *Config) SourceLimit(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "wallhaven":
		return c.Sources.Wallhaven.Limit, c.Sources.Wallhaven.Enabled
	case "reddit":
		return c.Sources.Reddit.Limit, c.Sources.Reddit.Enabled
	case "unsplash":
		return c.Sources.Unsplash.Limit, c.Sources.Unsplash.Enabled
	case "pixabay":
		return c.Sources.Pixabay.Limit, c.Sources.Pixabay.Enabled
	case "pexels":
		return c.Sources.Pexels.Limit, c.Sources.Pexels.Enabled
	}
	for _, custom := range c.Sources.Custom {
		if strings.EqualFold(custom.Name, name) {
			limit := custom.Limit
			if limit == 0 {
				limit = 10
			}
			return limit, custom.Enabled
		}
	}
	return 0, false
}

// ArchiveRemovesBase reports whether removing dir after archiving would
// remove the base directory or one of its parents
func (c *Config) ArchiveRemovesBase(dir string) bool {
	base, err := filepath.Abs(c.Output.BaseDirectory)
	if err != nil {
		return true
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(target, base)
	return err == nil && (rel == "." || !strings.HasPrefix(rel, ".."))
}

// OutputDirectory expands the folder pattern for a query under the base directory
func (c *Config) OutputDirectory(query string, sanitize func(string) string) string {
	folder := c.Output.FolderPattern
	if folder == "" {
		return c.Output.BaseDirectory
	}
	if sanitize != nil {
		query = sanitize(query)
	}
	folder = strings.ReplaceAll(folder, "{query}", query)
	return filepath.Join(c.Output.BaseDirectory, folder)
}
