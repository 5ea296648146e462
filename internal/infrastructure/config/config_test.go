package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
model:
  dir: "/tmp/models"
  debounce: 250
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Model.Dir != "/tmp/models" {
		t.Errorf("Model.Dir = %q, want %q", cfg.Model.Dir, "/tmp/models")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_DefaultsPreserved(t *testing.T) {
	// A minimal file should leave defaults for everything it omits.
	content := `
site:
  id: "minimal"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/hearth.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode = false, want default true")
	}
	if cfg.Model.Debounce != 500 {
		t.Errorf("Model.Debounce = %d, want default 500", cfg.Model.Debounce)
	}
	if cfg.MQTT.Broker.ClientID != "hearth-core" {
		t.Errorf("MQTT.Broker.ClientID = %q, want default", cfg.MQTT.Broker.ClientID)
	}
	if !cfg.Persistence.RestoreOnStartup {
		t.Error("Persistence.RestoreOnStartup = false, want default true")
	}
	if len(cfg.Persistence.Strategies) != 1 || cfg.Persistence.Strategies[0].Name != "everyChange" {
		t.Errorf("Persistence.Strategies = %+v, want default everyChange", cfg.Persistence.Strategies)
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		return &Config{
			Site:     SiteConfig{ID: "site-001"},
			Database: DatabaseConfig{Path: "/data/hearth.db"},
			Model:    ModelConfig{Dir: "/data/models"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Port: 8080},
			Security: SecurityConfig{JWTSecret: validJWTSecret},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "empty jwt secret is allowed",
			mutate: func(c *Config) { c.Security.JWTSecret = "" },
		},
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "missing model dir",
			mutate:  func(c *Config) { c.Model.Dir = "" },
			wantErr: "model.dir",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Model.Debounce = -1 },
			wantErr: "model.debounce",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "mqtt enabled without broker host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "tls without cert",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: "api.tls",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Org = "home"
				c.InfluxDB.Bucket = "states"
			},
			wantErr: "influxdb.url",
		},
		{
			name: "unknown strategy name",
			mutate: func(c *Config) {
				c.Persistence.Strategies = []StrategyConfig{{Name: "sometimes"}}
			},
			wantErr: "not a known strategy",
		},
		{
			name: "cron strategy without expression",
			mutate: func(c *Config) {
				c.Persistence.Strategies = []StrategyConfig{{Name: "cron"}}
			},
			wantErr: "cron expression",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"site.id", "database.path", "model.dir", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Model: ModelConfig{Debounce: 250},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetModelDebounce(); got != 250*time.Millisecond {
		t.Errorf("GetModelDebounce() = %v, want 250ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HEARTH_DATABASE_PATH", "/env/hearth.db")
	t.Setenv("HEARTH_MODEL_DIR", "/env/models")
	t.Setenv("HEARTH_MQTT_HOST", "env-broker")
	t.Setenv("HEARTH_MQTT_USERNAME", "env-user")
	t.Setenv("HEARTH_MQTT_PASSWORD", "env-pass")
	t.Setenv("HEARTH_API_HOST", "127.0.0.1")
	t.Setenv("HEARTH_API_PORT", "9090")
	t.Setenv("HEARTH_INFLUXDB_TOKEN", "env-token")
	t.Setenv("HEARTH_JWT_SECRET", "env-secret-key-at-least-32-chars!!")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/env/hearth.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Model.Dir != "/env/models" {
		t.Errorf("Model.Dir = %q, want env override", cfg.Model.Dir)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Username != "env-user" || cfg.MQTT.Auth.Password != "env-pass" {
		t.Error("MQTT credentials not overridden from environment")
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want env override", cfg.API.Host)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "env-token" {
		t.Errorf("InfluxDB.Token = %q, want env override", cfg.InfluxDB.Token)
	}
	if cfg.Security.JWTSecret != "env-secret-key-at-least-32-chars!!" {
		t.Errorf("Security.JWTSecret = %q, want env override", cfg.Security.JWTSecret)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	t.Setenv("HEARTH_API_PORT", "not-a-port")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080 for unparseable override", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Defaults must validate on their own: a fresh install with an empty
	// config file should come up.
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v, want nil", err)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("default MQTT QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Security.JWTSecret != "" {
		t.Error("default JWT secret should be empty (auth off until configured)")
	}
}
