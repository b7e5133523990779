package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	apiVersionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	languagePattern   = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the Wyoming listener configuration
type ServerConfig struct {
	// ListenURI is tcp://host:port or unix://path
	ListenURI      string `yaml:"listen_uri"`
	ReadBufferSize int    `yaml:"read_buffer_size"`
}

// HTTPConfig contains the monitoring HTTP API configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// BackendConfig contains the Azure OpenAI transcription backend
// configuration. It is shared read-only across all sessions.
type BackendConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	APIVersion    string `yaml:"api_version"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration defaults, matching the
// environment defaults the service has always shipped with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenURI:      "tcp://0.0.0.0:10300",
			ReadBufferSize: 65536,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "0.0.0.0",
			Port:    8080,
		},
		Backend: BackendConfig{
			APIVersion:    "2024-02-01",
			Model:         "whisper-1",
			Language:      "auto",
			Timeout:       30,
			MaxConcurrent: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variable overrides, then validates the result. An empty path
// skips the file layer.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// applyEnvironment overrides file/default values with environment
// variables. Variable names follow the original add-on contract.
func (c *Config) applyEnvironment() {
	setString(&c.Backend.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Backend.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&c.Backend.APIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&c.Backend.Model, "MODEL")
	setString(&c.Backend.Language, "LANGUAGE")
	setInt(&c.Backend.Timeout, "TRANSCRIPTION_TIMEOUT")
	setInt(&c.Backend.MaxConcurrent, "TRANSCRIPTION_MAX_CONCURRENT")

	setString(&c.Server.ListenURI, "WYOMING_URI")

	setBool(&c.HTTP.Enabled, "HTTP_ENABLED")
	setString(&c.HTTP.Address, "HTTP_ADDRESS")
	setInt(&c.HTTP.Port, "HTTP_PORT")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.Output, "LOG_OUTPUT")

	// DEBUG=true is the legacy switch for verbose logging
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		c.Logging.Level = "debug"
	}
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the Wyoming listener configuration
func (s *ServerConfig) Validate() error {
	if _, _, err := parseListenURI(s.ListenURI); err != nil {
		return err
	}

	if s.ReadBufferSize < 1024 {
		return fmt.Errorf("read_buffer_size must be at least 1024 bytes, got %d", s.ReadBufferSize)
	}

	return nil
}

// Validate validates the HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates the transcription backend configuration
func (b *BackendConfig) Validate() error {
	if b.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty (set AZURE_OPENAI_ENDPOINT)")
	}

	parsed, err := url.Parse(b.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL, got %q", b.Endpoint)
	}

	if len(strings.TrimSpace(b.APIKey)) < 10 {
		return fmt.Errorf("api key is missing or too short (set AZURE_OPENAI_API_KEY)")
	}

	if !apiVersionPattern.MatchString(b.APIVersion) {
		return fmt.Errorf("api version must match YYYY-MM-DD, got %q", b.APIVersion)
	}

	if strings.TrimSpace(b.Model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if b.Language != "auto" && !languagePattern.MatchString(b.Language) {
		return fmt.Errorf("language must be %q or an ISO code like %q or %q, got %q",
			"auto", "en", "pt-BR", b.Language)
	}

	if b.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", b.Timeout)
	}

	if b.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", b.MaxConcurrent)
	}

	return nil
}

// Validate validates the logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}

	// Output accepts stdout, stderr, or a file path; nothing to reject here

	return nil
}

// ListenNetwork returns the net.Listen network ("tcp" or "unix") for the
// configured listen URI.
func (s *ServerConfig) ListenNetwork() string {
	network, _, err := parseListenURI(s.ListenURI)
	if err != nil {
		return ""
	}
	return network
}

// ListenAddress returns the net.Listen address (host:port or socket path)
// for the configured listen URI.
func (s *ServerConfig) ListenAddress() string {
	_, address, err := parseListenURI(s.ListenURI)
	if err != nil {
		return ""
	}
	return address
}

func parseListenURI(uri string) (network, address string, err error) {
	if uri == "" {
		return "", "", fmt.Errorf("listen URI cannot be empty")
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid listen URI %q: %w", uri, err)
	}

	switch parsed.Scheme {
	case "tcp":
		if parsed.Hostname() == "" || parsed.Port() == "" {
			return "", "", fmt.Errorf("tcp listen URI requires host and port, got %q", uri)
		}
		return "tcp", parsed.Host, nil

	case "unix":
		path := parsed.Path
		if path == "" {
			path = parsed.Opaque
		}
		if parsed.Host != "" {
			// unix://relative/path puts the first segment in Host
			path = parsed.Host + path
		}
		if path == "" {
			return "", "", fmt.Errorf("unix listen URI requires a socket path, got %q", uri)
		}
		return "unix", path, nil

	default:
		return "", "", fmt.Errorf("listen URI scheme must be tcp or unix, got %q", uri)
	}
}

// GetTimeoutDuration returns the backend call timeout as a time.Duration
func (b *BackendConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

// LanguageHint returns the language to pass to the backend, or an empty
// string when the backend should auto-detect.
func (b *BackendConfig) LanguageHint() string {
	if b.Language == "auto" {
		return ""
	}
	return b.Language
}
