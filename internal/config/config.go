package config

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ScannerAgentName is the A2A agent name of the page scanner
	ScannerAgentName = "EstimateScannerAgent"
	// DefaultScannerPort is the default port of the scanner agent
	DefaultScannerPort = "8080"
	// DefaultWebhookPort is the default port of the Jira webhook listener
	DefaultWebhookPort = "8083"
)

// Field fallback policies for estimate field resolution
const (
	FallbackStrict  = "strict"
	FallbackDefault = "default"
)

// Page source kinds
const (
	SourceBrowser = "browser"
	SourceHTTP    = "http"
	SourceFile    = "file"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerPort  int
	ServerHost  string
	WebhookPort int

	// Agent configuration
	AgentName    string
	AgentVersion string
	AgentURL     string

	// Jira configuration
	JiraBaseURL       string
	JiraUsername      string
	JiraAPIToken      string
	JiraBearerToken   string
	JiraSessionCookie string
	JiraTimeout       time.Duration

	// Authentication
	AuthType  string // "jwt", "apikey" or "none"
	JWTSecret string
	APIKey    string

	// Page source
	PageSource        string
	PageURL           string
	PageFile          string
	BrowserProfileDir string
	BrowserHeadless   bool

	// Estimate field resolution
	FieldFallback  string
	DefaultFieldID string
	CommonFieldIDs []string

	// Editor behaviour
	EstimatePresets []float64
	RescanDebounce  time.Duration
	RescanInterval  time.Duration
	BulkPace        time.Duration
	ToastDuration   time.Duration

	LogLevel string
}

var v = viper.New()

// init loads environment variables from .env file
func init() {
	// Try to load from project root first
	err := godotenv.Load()
	if err != nil {
		// Try loading from parent directory (assuming we're in a subdirectory)
		err = godotenv.Load("../.env")
		if err != nil {
			// Try one more level up
			err = godotenv.Load("../../.env")
			if err != nil {
				log.Println("No .env file found or error loading it. Using environment variables or defaults.")
			} else {
				log.Println("Loaded configuration from ../../.env file")
			}
		} else {
			log.Println("Loaded configuration from ../.env file")
		}
	} else {
		log.Println("Loaded configuration from .env file")
	}

	v.AutomaticEnv()
	setDefaults(v)
}

// GetViper returns the viper instance backing the configuration
func GetViper() *viper.Viper {
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", DefaultScannerPort)
	v.SetDefault("server_host", "localhost")
	v.SetDefault("webhook_port", DefaultWebhookPort)
	v.SetDefault("agent_name", ScannerAgentName)
	v.SetDefault("agent_version", "1.0.0")
	v.SetDefault("agent_url", "http://localhost:"+DefaultScannerPort)
	v.SetDefault("jira_base_url", "https://your-jira-instance.atlassian.net")
	v.SetDefault("jira_timeout", "30s")
	v.SetDefault("auth_type", "apikey")
	v.SetDefault("jwt_secret", "your-jwt-secret")
	v.SetDefault("api_key", "your-api-key")
	v.SetDefault("page_source", SourceBrowser)
	v.SetDefault("browser_headless", false)
	v.SetDefault("estimate_field_fallback", FallbackStrict)
	v.SetDefault("estimate_default_field", "customfield_10016")
	v.SetDefault("estimate_common_fields", "customfield_10016,customfield_10004,customfield_10006,customfield_10026,customfield_10002,customfield_10014,customfield_10034")
	v.SetDefault("estimate_presets", "0.1,0.2,0.5,1,1.5,2,3")
	v.SetDefault("rescan_debounce", "100ms")
	v.SetDefault("rescan_interval", "1s")
	v.SetDefault("bulk_pace", "100ms")
	v.SetDefault("toast_duration", "2s")
	v.SetDefault("log_level", "info")
}

// LoadFile merges a YAML, TOML or JSON config file into the configuration.
// Environment variables still take precedence over file values.
func LoadFile(path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	log.Printf("Loaded configuration from %s", path)
	return nil
}

// NewConfig creates a new configuration with values from environment variables
func NewConfig() *Config {
	return FromViper(v)
}

// FromViper builds a configuration from the given viper instance
func FromViper(v *viper.Viper) *Config {
	port, _ := strconv.Atoi(v.GetString("server_port"))
	webhookPort, _ := strconv.Atoi(v.GetString("webhook_port"))

	return &Config{
		// Server configuration
		ServerPort:  port,
		ServerHost:  v.GetString("server_host"),
		WebhookPort: webhookPort,

		// Agent configuration
		AgentName:    v.GetString("agent_name"),
		AgentVersion: v.GetString("agent_version"),
		AgentURL:     v.GetString("agent_url"),

		// Jira configuration
		JiraBaseURL:       strings.TrimRight(v.GetString("jira_base_url"), "/"),
		JiraUsername:      v.GetString("jira_username"),
		JiraAPIToken:      v.GetString("jira_api_token"),
		JiraBearerToken:   v.GetString("jira_bearer_token"),
		JiraSessionCookie: v.GetString("jira_session_cookie"),
		JiraTimeout:       v.GetDuration("jira_timeout"),

		// Authentication
		AuthType:  strings.ToLower(v.GetString("auth_type")),
		JWTSecret: v.GetString("jwt_secret"),
		APIKey:    v.GetString("api_key"),

		// Page source
		PageSource:        strings.ToLower(v.GetString("page_source")),
		PageURL:           v.GetString("page_url"),
		PageFile:          v.GetString("page_file"),
		BrowserProfileDir: v.GetString("browser_profile_dir"),
		BrowserHeadless:   v.GetBool("browser_headless"),

		// Estimate field resolution
		FieldFallback:  strings.ToLower(v.GetString("estimate_field_fallback")),
		DefaultFieldID: v.GetString("estimate_default_field"),
		CommonFieldIDs: splitList(v.GetString("estimate_common_fields")),

		// Editor behaviour
		EstimatePresets: parsePresets(v.GetString("estimate_presets")),
		RescanDebounce:  v.GetDuration("rescan_debounce"),
		RescanInterval:  v.GetDuration("rescan_interval"),
		BulkPace:        v.GetDuration("bulk_pace"),
		ToastDuration:   v.GetDuration("toast_duration"),

		LogLevel: v.GetString("log_level"),
	}
}

// Validate reports configuration errors that would make the editor unusable
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.JiraBaseURL); err != nil {
		return fmt.Errorf("invalid JIRA_BASE_URL %q: %w", c.JiraBaseURL, err)
	}
	switch c.PageSource {
	case SourceBrowser, SourceHTTP:
		if c.PageURL == "" {
			return fmt.Errorf("PAGE_URL is required for page source %q", c.PageSource)
		}
	case SourceFile:
		if c.PageFile == "" {
			return fmt.Errorf("PAGE_FILE is required for page source %q", c.PageSource)
		}
	default:
		return fmt.Errorf("unsupported page source: %s", c.PageSource)
	}
	switch c.FieldFallback {
	case FallbackStrict, FallbackDefault:
	default:
		return fmt.Errorf("unsupported estimate field fallback: %s", c.FieldFallback)
	}
	switch c.AuthType {
	case "apikey", "jwt", "none", "":
	default:
		return fmt.Errorf("unsupported auth type: %s", c.AuthType)
	}
	if len(c.EstimatePresets) == 0 {
		return fmt.Errorf("ESTIMATE_PRESETS must contain at least one number")
	}
	return nil
}

// AllowsDefaultField reports whether field resolution may fall back to DefaultFieldID
func (c *Config) AllowsDefaultField() bool {
	return c.FieldFallback == FallbackDefault
}

// ServerAddr returns the host:port the scanner agent listens on
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// splitList splits a comma separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePresets parses a comma separated list of non-negative numbers.
// Invalid entries are skipped.
func parsePresets(s string) []float64 {
	var out []float64
	for _, part := range splitList(s) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f < 0 {
			log.Printf("Ignoring invalid estimate preset %q", part)
			continue
		}
		out = append(out, f)
	}
	return out
}
