package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validBackend() BackendConfig {
	return BackendConfig{
		Endpoint:      "https://example.openai.azure.com",
		APIKey:        "0123456789abcdef",
		APIVersion:    "2024-02-01",
		Model:         "whisper-1",
		Language:      "auto",
		Timeout:       30,
		MaxConcurrent: 10,
	}
}

func validConfig() *Config {
	config := Default()
	config.Backend = validBackend()
	return config
}

func TestValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestDefaultConfigMissingBackend(t *testing.T) {
	// Defaults carry no endpoint or key, so validation must fail
	if err := Default().Validate(); err == nil {
		t.Error("Expected validation error for missing backend credentials")
	}
}

func TestBackendValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*BackendConfig)
		valid  bool
	}{
		{"valid", func(b *BackendConfig) {}, true},
		{"empty endpoint", func(b *BackendConfig) { b.Endpoint = "" }, false},
		{"relative endpoint", func(b *BackendConfig) { b.Endpoint = "example.com/openai" }, false},
		{"empty api key", func(b *BackendConfig) { b.APIKey = "" }, false},
		{"short api key", func(b *BackendConfig) { b.APIKey = "short" }, false},
		{"bad api version", func(b *BackendConfig) { b.APIVersion = "2024-2-1" }, false},
		{"api version with suffix", func(b *BackendConfig) { b.APIVersion = "2024-06-01-preview" }, false},
		{"empty model", func(b *BackendConfig) { b.Model = "  " }, false},
		{"language auto", func(b *BackendConfig) { b.Language = "auto" }, true},
		{"language two letters", func(b *BackendConfig) { b.Language = "en" }, true},
		{"language three letters", func(b *BackendConfig) { b.Language = "yue" }, true},
		{"language with region", func(b *BackendConfig) { b.Language = "pt-BR" }, true},
		{"language uppercase", func(b *BackendConfig) { b.Language = "EN" }, false},
		{"language too long", func(b *BackendConfig) { b.Language = "english" }, false},
		{"zero timeout", func(b *BackendConfig) { b.Timeout = 0 }, false},
		{"zero max concurrent", func(b *BackendConfig) { b.MaxConcurrent = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := validBackend()
			tt.modify(&backend)

			err := backend.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestServerValidation(t *testing.T) {
	tests := []struct {
		name  string
		uri   string
		valid bool
	}{
		{"tcp with host and port", "tcp://0.0.0.0:10300", true},
		{"tcp localhost", "tcp://127.0.0.1:11350", true},
		{"unix socket", "unix:///tmp/wyoming.sock", true},
		{"missing port", "tcp://0.0.0.0", false},
		{"unsupported scheme", "udp://0.0.0.0:10300", false},
		{"http scheme", "http://0.0.0.0:10300", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := ServerConfig{ListenURI: tt.uri, ReadBufferSize: 65536}

			err := server.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestServerReadBufferSize(t *testing.T) {
	server := ServerConfig{ListenURI: "tcp://0.0.0.0:10300", ReadBufferSize: 512}
	if err := server.Validate(); err == nil {
		t.Error("Expected validation error for tiny read buffer")
	}
}

func TestListenNetworkAndAddress(t *testing.T) {
	tcp := ServerConfig{ListenURI: "tcp://127.0.0.1:10300"}
	if tcp.ListenNetwork() != "tcp" {
		t.Errorf("Expected network tcp, got %q", tcp.ListenNetwork())
	}
	if tcp.ListenAddress() != "127.0.0.1:10300" {
		t.Errorf("Expected address 127.0.0.1:10300, got %q", tcp.ListenAddress())
	}

	unix := ServerConfig{ListenURI: "unix:///run/wyoming.sock"}
	if unix.ListenNetwork() != "unix" {
		t.Errorf("Expected network unix, got %q", unix.ListenNetwork())
	}
	if unix.ListenAddress() != "/run/wyoming.sock" {
		t.Errorf("Expected address /run/wyoming.sock, got %q", unix.ListenAddress())
	}
}

func TestHTTPValidation(t *testing.T) {
	disabled := HTTPConfig{Enabled: false}
	if err := disabled.Validate(); err != nil {
		t.Errorf("Disabled HTTP config must validate, got: %v", err)
	}

	badPort := HTTPConfig{Enabled: true, Address: "0.0.0.0", Port: 0}
	if err := badPort.Validate(); err == nil {
		t.Error("Expected validation error for port 0")
	}

	noAddress := HTTPConfig{Enabled: true, Address: "", Port: 8080}
	if err := noAddress.Validate(); err == nil {
		t.Error("Expected validation error for empty address")
	}
}

func TestLoggingValidation(t *testing.T) {
	tests := []struct {
		name    string
		logging LoggingConfig
		valid   bool
	}{
		{"valid", LoggingConfig{Level: "info", Format: "text", Output: "stdout"}, true},
		{"json to file", LoggingConfig{Level: "debug", Format: "json", Output: "/var/log/stt.log"}, true},
		{"bad level", LoggingConfig{Level: "verbose", Format: "text", Output: "stdout"}, false},
		{"bad format", LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.logging.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://unit.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "env-key-0123456789")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-06-01")
	t.Setenv("MODEL", "gpt-4o-transcribe")
	t.Setenv("LANGUAGE", "es")
	t.Setenv("WYOMING_URI", "tcp://127.0.0.1:11350")
	t.Setenv("HTTP_ENABLED", "true")
	t.Setenv("HTTP_PORT", "9090")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Backend.Endpoint != "https://unit.openai.azure.com" {
		t.Errorf("Unexpected endpoint: %q", config.Backend.Endpoint)
	}
	if config.Backend.APIVersion != "2024-06-01" {
		t.Errorf("Unexpected api version: %q", config.Backend.APIVersion)
	}
	if config.Backend.Model != "gpt-4o-transcribe" {
		t.Errorf("Unexpected model: %q", config.Backend.Model)
	}
	if config.Backend.Language != "es" {
		t.Errorf("Unexpected language: %q", config.Backend.Language)
	}
	if config.Server.ListenURI != "tcp://127.0.0.1:11350" {
		t.Errorf("Unexpected listen URI: %q", config.Server.ListenURI)
	}
	if !config.HTTP.Enabled || config.HTTP.Port != 9090 {
		t.Errorf("HTTP overrides not applied: %+v", config.HTTP)
	}
}

func TestLoadDebugSwitch(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://unit.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "env-key-0123456789")
	t.Setenv("DEBUG", "true")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected debug level from DEBUG=true, got %q", config.Logging.Level)
	}
}

func TestLoadMissingRequiredEnv(t *testing.T) {
	// No endpoint or key anywhere: startup must fail fast
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Error("Expected Load to fail without backend credentials")
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	content := `
server:
  listen_uri: tcp://0.0.0.0:10301
  read_buffer_size: 65536
backend:
  endpoint: https://file.openai.azure.com
  api_key: file-key-0123456789
  model: whisper-1
  language: de
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("LANGUAGE", "fr")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Backend.Endpoint != "https://file.openai.azure.com" {
		t.Errorf("File endpoint not applied: %q", config.Backend.Endpoint)
	}

	// Environment wins over the file
	if config.Backend.Language != "fr" {
		t.Errorf("Expected env override fr, got %q", config.Backend.Language)
	}

	// File leaves defaults untouched where it is silent
	if config.Backend.APIVersion != "2024-02-01" {
		t.Errorf("Expected default api version, got %q", config.Backend.APIVersion)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestGetTimeoutDuration(t *testing.T) {
	backend := BackendConfig{Timeout: 45}
	if backend.GetTimeoutDuration() != 45*time.Second {
		t.Errorf("Expected 45s, got %v", backend.GetTimeoutDuration())
	}
}

func TestLanguageHint(t *testing.T) {
	auto := BackendConfig{Language: "auto"}
	if auto.LanguageHint() != "" {
		t.Errorf("Expected empty hint for auto, got %q", auto.LanguageHint())
	}

	fixed := BackendConfig{Language: "uk"}
	if fixed.LanguageHint() != "uk" {
		t.Errorf("Expected uk, got %q", fixed.LanguageHint())
	}
}
