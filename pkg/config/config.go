package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled    bool     `json:"enabled" mapstructure:"enabled"`
	APIKeys    []APIKey `json:"api_keys" mapstructure:"api_keys"`
	KeysFile   string   `json:"keys_file" mapstructure:"keys_file"`
	HeaderName string   `json:"header_name" mapstructure:"header_name"`
}

// APIKey represents an API key configuration
type APIKey struct {
	Key         string   `json:"key" mapstructure:"key"`
	UserID      string   `json:"user_id" mapstructure:"user_id"`
	Role        string   `json:"role" mapstructure:"role"`
	Permissions []string `json:"permissions" mapstructure:"permissions"`
	CreatedAt   string   `json:"created_at" mapstructure:"created_at"`
	ExpiresAt   string   `json:"expires_at,omitempty" mapstructure:"expires_at"`
}

// VAPIDConfig holds the application server key pair used to authenticate
// against push services
type VAPIDConfig struct {
	PublicKey    string `json:"public_key" mapstructure:"public_key"`
	PrivateKey   string `json:"private_key" mapstructure:"private_key"`
	ContactEmail string `json:"contact_email" mapstructure:"contact_email"`
	TTL          int    `json:"ttl" mapstructure:"ttl"`
}

// Configured returns true when a usable key pair is present
func (v *VAPIDConfig) Configured() bool {
	return v.PublicKey != "" && v.PrivateKey != "" && v.ContactEmail != ""
}

// StorageConfig controls where subscription and history data is persisted
type StorageConfig struct {
	BaseDir string `json:"base_dir" mapstructure:"base_dir"`
}

// RedisConfig controls the optional Redis backend used for the broadcast
// channel and the asset cache store
type RedisConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

// NotifyDefaults are the fallback values applied to incomplete push payloads
type NotifyDefaults struct {
	AppName string `json:"app_name" mapstructure:"app_name"`
	Body    string `json:"body" mapstructure:"body"`
	URL     string `json:"url" mapstructure:"url"`
	Tag     string `json:"tag" mapstructure:"tag"`
	Icon    string `json:"icon" mapstructure:"icon"`
	Badge   string `json:"badge" mapstructure:"badge"`
}

// FanoutConfig controls client fan-out behavior
type FanoutConfig struct {
	Channel string `json:"channel" mapstructure:"channel"`
}

// CacheConfig controls the asset cache layer
type CacheConfig struct {
	Version string `json:"version" mapstructure:"version"`
}

// HistoryConfig controls notification history retention
type HistoryConfig struct {
	MaxEntries     int    `json:"max_entries" mapstructure:"max_entries"`
	RotateSchedule string `json:"rotate_schedule" mapstructure:"rotate_schedule"`
}

// GuardrailsConfig controls the topic keyword classifier
type GuardrailsConfig struct {
	KeywordsFile string `json:"keywords_file" mapstructure:"keywords_file"`
}

// Config represents the push gateway configuration
type Config struct {
	Auth       AuthConfig       `json:"auth" mapstructure:"auth"`
	VAPID      VAPIDConfig      `json:"vapid" mapstructure:"vapid"`
	Storage    StorageConfig    `json:"storage" mapstructure:"storage"`
	Redis      RedisConfig      `json:"redis" mapstructure:"redis"`
	Defaults   NotifyDefaults   `json:"defaults" mapstructure:"defaults"`
	Fanout     FanoutConfig     `json:"fanout" mapstructure:"fanout"`
	Cache      CacheConfig      `json:"cache" mapstructure:"cache"`
	History    HistoryConfig    `json:"history" mapstructure:"history"`
	Guardrails GuardrailsConfig `json:"guardrails" mapstructure:"guardrails"`
}

// LoadConfig loads configuration from a JSON file. Environment variables
// override file values for the VAPID key pair so the private key does not
// have to live in the config file.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := file.Close(); err != nil {
				log.Printf("Failed to close config file: %v", err)
			}
		}()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	// Load API keys from external file if specified
	if config.Auth.Enabled && config.Auth.KeysFile != "" {
		if err := config.loadAPIKeysFromFile(); err != nil {
			log.Printf("Warning: Failed to load API keys from %s: %v", config.Auth.KeysFile, err)
		}
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Enabled:    false,
			HeaderName: "X-API-Key",
			APIKeys:    []APIKey{},
		},
		VAPID: VAPIDConfig{
			TTL: 86400,
		},
		Storage: StorageConfig{
			BaseDir: defaultBaseDir(),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Defaults: NotifyDefaults{
			AppName: "Arya Natural Farms",
			Body:    "New product available!",
			URL:     "/",
			Tag:     "arya-notification",
			Icon:    "/icon-192x192.png",
			Badge:   "/badge-72x72.png",
		},
		Fanout: FanoutConfig{
			Channel: "notification-updates",
		},
		Cache: CacheConfig{
			Version: "v3",
		},
		History: HistoryConfig{
			MaxEntries:     500,
			RotateSchedule: "0 3 * * *",
		},
	}
}

// applyDefaults fills zero values left by a partial config file
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Auth.HeaderName == "" {
		c.Auth.HeaderName = def.Auth.HeaderName
	}
	if c.VAPID.TTL == 0 {
		c.VAPID.TTL = def.VAPID.TTL
	}
	if c.Storage.BaseDir == "" {
		c.Storage.BaseDir = def.Storage.BaseDir
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = def.Redis.Addr
	}
	if c.Defaults.AppName == "" {
		c.Defaults.AppName = def.Defaults.AppName
	}
	if c.Defaults.Body == "" {
		c.Defaults.Body = def.Defaults.Body
	}
	if c.Defaults.URL == "" {
		c.Defaults.URL = def.Defaults.URL
	}
	if c.Defaults.Tag == "" {
		c.Defaults.Tag = def.Defaults.Tag
	}
	if c.Defaults.Icon == "" {
		c.Defaults.Icon = def.Defaults.Icon
	}
	if c.Defaults.Badge == "" {
		c.Defaults.Badge = def.Defaults.Badge
	}
	if c.Fanout.Channel == "" {
		c.Fanout.Channel = def.Fanout.Channel
	}
	if c.Cache.Version == "" {
		c.Cache.Version = def.Cache.Version
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = def.History.MaxEntries
	}
	if c.History.RotateSchedule == "" {
		c.History.RotateSchedule = def.History.RotateSchedule
	}
}

// applyEnvOverrides overrides selected values from environment variables
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		c.VAPID.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		c.VAPID.PrivateKey = v
	}
	if v := os.Getenv("VAPID_CONTACT_EMAIL"); v != "" {
		c.VAPID.ContactEmail = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("PUSH_STORAGE_DIR"); v != "" {
		c.Storage.BaseDir = v
	}
}

func defaultBaseDir() string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = "/home/greenspace"
	}
	return homeDir + "/.greenspace-push"
}

// loadAPIKeysFromFile loads API keys from an external JSON file
func (c *Config) loadAPIKeysFromFile() error {
	file, err := os.Open(c.Auth.KeysFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close API keys file: %v", err)
		}
	}()

	var keysData struct {
		APIKeys []APIKey `json:"api_keys"`
	}

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&keysData); err != nil {
		return err
	}

	c.Auth.APIKeys = keysData.APIKeys
	return nil
}

// ValidateAPIKey validates an API key and returns user information
func (c *Config) ValidateAPIKey(key string) (*APIKey, bool) {
	if !c.Auth.Enabled {
		return nil, false
	}

	for _, apiKey := range c.Auth.APIKeys {
		if apiKey.Key == key {
			// Check if key is expired
			if apiKey.ExpiresAt != "" {
				expiryTime, err := time.Parse(time.RFC3339, apiKey.ExpiresAt)
				if err != nil {
					log.Printf("Invalid expiry time format for API key: %v", err)
					continue
				}
				if time.Now().After(expiryTime) {
					log.Printf("API key expired for user %s", apiKey.UserID)
					continue
				}
			}
			return &apiKey, true
		}
	}

	return nil, false
}
