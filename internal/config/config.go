package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Bedrock    BedrockConfig    `yaml:"bedrock"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Imagery    ImageryConfig    `yaml:"imagery"`
	Extract    ExtractConfig    `yaml:"extract"`
	Mautic     MauticConfig     `yaml:"mautic"`
	SES        SESConfig        `yaml:"ses"`
	Redis      RedisConfig      `yaml:"redis"`
	ExecLog    ExecLogConfig    `yaml:"execlog"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// StoreConfig holds the tabular store API configuration
type StoreConfig struct {
	BaseURL        string            `yaml:"base_url"`
	APIKey         string            `yaml:"api_key"`
	BaseID         string            `yaml:"base_id"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Tables         map[string]string `yaml:"tables"`
}

// Timeout returns the configured timeout as a duration
func (c StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FeedsConfig holds feed ingestion configuration
type FeedsConfig struct {
	ReaderBaseURL    string   `yaml:"reader_base_url"`
	ReaderAPIKey     string   `yaml:"reader_api_key"`
	DirectFeedURLs   []string `yaml:"direct_feed_urls"`
	ArticleLimit     int      `yaml:"article_limit"`
	SinceHours       int      `yaml:"since_hours"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	ResolverParallel int      `yaml:"resolver_parallel"`
}

// Timeout returns the configured timeout as a duration
func (c FeedsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BedrockConfig holds AWS Bedrock configuration for the reasoning model
type BedrockConfig struct {
	Region         string  `yaml:"region"`
	ModelID        string  `yaml:"model_id"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GeminiConfig holds Gemini API configuration for bulk classification
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	ImageModel     string `yaml:"image_model"`
	ChunkSize      int    `yaml:"chunk_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c GeminiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAIConfig holds OpenAI API configuration for fallback image generation
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	ImageModel     string `yaml:"image_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ImageryConfig holds image optimization and hosting configuration
type ImageryConfig struct {
	CloudinaryCloudName string `yaml:"cloudinary_cloud_name"`
	CloudinaryPreset    string `yaml:"cloudinary_preset"`
	CloudflareAccountID string `yaml:"cloudflare_account_id"`
	CloudflareAPIToken  string `yaml:"cloudflare_api_token"`
	TargetWidth         int    `yaml:"target_width"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c ImageryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExtractConfig holds the headless-browser extraction service configuration
type ExtractConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	Sources        []string `yaml:"sources"`
	MinBodyLength  int      `yaml:"min_body_length"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        bool     `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c ExtractConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MauticConfig holds the email gateway configuration
type MauticConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	SegmentID      int    `yaml:"segment_id"`
	TransportID    int    `yaml:"transport_id"`
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
	ReplyTo        string `yaml:"reply_to"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c MauticConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds the fallback AWS SES sender configuration
type SESConfig struct {
	Region         string   `yaml:"region"`
	FromAddress    string   `yaml:"from_address"`
	FromName       string   `yaml:"from_name"`
	Recipients     []string `yaml:"recipients"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        bool     `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RedisConfig holds the optional send-queue nudge configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
	Enabled  bool   `yaml:"enabled"`
}

// ExecLogConfig holds the execution-log database configuration
type ExecLogConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Enabled     bool   `yaml:"enabled"`
}

// SchedulerConfig holds the daily cycle configuration
type SchedulerConfig struct {
	Timezone            string            `yaml:"timezone"`
	CycleTimes          []string          `yaml:"cycle_times"`
	PublicationTimes    map[string]string `yaml:"publication_times"`
	StageTimeoutMinutes int               `yaml:"stage_timeout_minutes"`
	SendCheckMinutes    int               `yaml:"send_check_minutes"`
	Enabled             bool              `yaml:"enabled"`
}

// StageTimeout returns the per-stage timeout as a duration
func (c SchedulerConfig) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutMinutes) * time.Minute
}

// SendCheckInterval returns the scheduled-send sweep interval
func (c SchedulerConfig) SendCheckInterval() time.Duration {
	return time.Duration(c.SendCheckMinutes) * time.Minute
}

// NewsletterConfig holds editorial configuration shared by both variants
type NewsletterConfig struct {
	Tier1Companies   []string `yaml:"tier1_companies"`
	DedupDays        int      `yaml:"dedup_days"`
	SlotLimit        int      `yaml:"slot_limit"`
	MinSourceScore   int      `yaml:"min_source_score"`
	SubjectMaxLen    int      `yaml:"subject_max_len"`
	BrandName        string   `yaml:"brand_name"`
	DeliverableBrand string   `yaml:"deliverable_brand"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Store.BaseURL == "" {
		cfg.Store.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Store.TimeoutSeconds == 0 {
		cfg.Store.TimeoutSeconds = 60
	}
	if cfg.Feeds.ArticleLimit == 0 {
		cfg.Feeds.ArticleLimit = 250
	}
	if cfg.Feeds.SinceHours == 0 {
		cfg.Feeds.SinceHours = 24
	}
	if cfg.Feeds.TimeoutSeconds == 0 {
		cfg.Feeds.TimeoutSeconds = 30
	}
	if cfg.Feeds.ResolverParallel == 0 {
		cfg.Feeds.ResolverParallel = 10
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 4096
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 120
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Gemini.ImageModel == "" {
		cfg.Gemini.ImageModel = "imagen-3.0-generate-002"
	}
	if cfg.Gemini.ChunkSize == 0 {
		cfg.Gemini.ChunkSize = 100
	}
	if cfg.Gemini.TimeoutSeconds == 0 {
		cfg.Gemini.TimeoutSeconds = 120
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.ImageModel == "" {
		cfg.OpenAI.ImageModel = "gpt-image-1"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 120
	}
	if cfg.Imagery.TargetWidth == 0 {
		cfg.Imagery.TargetWidth = 636
	}
	if cfg.Imagery.TimeoutSeconds == 0 {
		cfg.Imagery.TimeoutSeconds = 60
	}
	if cfg.Extract.MinBodyLength == 0 {
		cfg.Extract.MinBodyLength = 500
	}
	if cfg.Extract.TimeoutSeconds == 0 {
		cfg.Extract.TimeoutSeconds = 90
	}
	if cfg.Mautic.TimeoutSeconds == 0 {
		cfg.Mautic.TimeoutSeconds = 60
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Redis.Queue == "" {
		cfg.Redis.Queue = "newsletter:send"
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "America/New_York"
	}
	if len(cfg.Scheduler.CycleTimes) == 0 {
		cfg.Scheduler.CycleTimes = []string{"02:00", "09:30", "17:00"}
	}
	if len(cfg.Scheduler.PublicationTimes) == 0 {
		cfg.Scheduler.PublicationTimes = map[string]string{
			"pivot5": "23:55",
			"signal": "00:00",
		}
	}
	if cfg.Scheduler.StageTimeoutMinutes == 0 {
		cfg.Scheduler.StageTimeoutMinutes = 30
	}
	if cfg.Scheduler.SendCheckMinutes == 0 {
		cfg.Scheduler.SendCheckMinutes = 5
	}
	if cfg.Newsletter.DedupDays == 0 {
		cfg.Newsletter.DedupDays = 14
	}
	if cfg.Newsletter.SlotLimit == 0 {
		cfg.Newsletter.SlotLimit = 100
	}
	if cfg.Newsletter.MinSourceScore == 0 {
		cfg.Newsletter.MinSourceScore = 2
	}
	if cfg.Newsletter.SubjectMaxLen == 0 {
		cfg.Newsletter.SubjectMaxLen = 90
	}
	if cfg.Newsletter.BrandName == "" {
		cfg.Newsletter.BrandName = "Pivot 5"
	}
	if cfg.Newsletter.DeliverableBrand == "" {
		cfg.Newsletter.DeliverableBrand = "Daily AI Briefing"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if v := os.Getenv("STORE_API_KEY"); v != "" {
		cfg.Store.APIKey = v
	}
	if v := os.Getenv("STORE_BASE_ID"); v != "" {
		cfg.Store.BaseID = v
	}
	if v := os.Getenv("FEED_READER_BASE_URL"); v != "" {
		cfg.Feeds.ReaderBaseURL = v
	}
	if v := os.Getenv("FEED_READER_API_KEY"); v != "" {
		cfg.Feeds.ReaderAPIKey = v
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
		cfg.Gemini.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
		cfg.OpenAI.Enabled = true
	}
	if v := os.Getenv("CLOUDINARY_CLOUD_NAME"); v != "" {
		cfg.Imagery.CloudinaryCloudName = v
	}
	if v := os.Getenv("CLOUDINARY_PRESET"); v != "" {
		cfg.Imagery.CloudinaryPreset = v
	}
	if v := os.Getenv("CLOUDFLARE_ACCOUNT_ID"); v != "" {
		cfg.Imagery.CloudflareAccountID = v
	}
	if v := os.Getenv("CLOUDFLARE_API_TOKEN"); v != "" {
		cfg.Imagery.CloudflareAPIToken = v
	}
	if v := os.Getenv("EXTRACT_BASE_URL"); v != "" {
		cfg.Extract.BaseURL = v
	}
	if v := os.Getenv("EXTRACT_API_KEY"); v != "" {
		cfg.Extract.APIKey = v
	}
	if v := os.Getenv("MAUTIC_BASE_URL"); v != "" {
		cfg.Mautic.BaseURL = v
	}
	if v := os.Getenv("MAUTIC_USERNAME"); v != "" {
		cfg.Mautic.Username = v
	}
	if v := os.Getenv("MAUTIC_PASSWORD"); v != "" {
		cfg.Mautic.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.ExecLog.DatabaseURL = v
		cfg.ExecLog.Enabled = true
	}

	return cfg, nil
}
