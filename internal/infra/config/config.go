package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	NLU       NLUConfig       `yaml:"nlu"`
	QA        QAConfig        `yaml:"qa"`
	Identity  IdentityConfig  `yaml:"identity"`
	Directory DirectoryConfig `yaml:"directory"`
	Partner   PartnerConfig   `yaml:"partner"`
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

// BotConfig identifies the bot itself and the sign-in flow parameters.
type BotConfig struct {
	ID          string        `yaml:"id"`
	Tenant      string        `yaml:"tenant"`       // sign-in tenant, default "common"
	RedirectURI string        `yaml:"redirect_uri"` // OAuth callback URL
	StateSecret string        `yaml:"state_secret"` // HMAC key for the OAuth state token
	StateTTL    time.Duration `yaml:"state_ttl"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// NLUConfig holds intent classifier settings.
type NLUConfig struct {
	Endpoint string        `yaml:"endpoint"`
	AppID    string        `yaml:"app_id"`
	Key      string        `yaml:"key"`
	Timeout  time.Duration `yaml:"timeout"`

	// Circuit breaker over the classifier.
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

// QAConfig holds knowledge base settings.
type QAConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	KnowledgeBase  string        `yaml:"knowledge_base"`
	Key            string        `yaml:"key"`
	ScoreThreshold float64       `yaml:"score_threshold"`
	Timeout        time.Duration `yaml:"timeout"`
}

// IdentityConfig holds identity provider settings.
type IdentityConfig struct {
	Authority    string        `yaml:"authority"` // e.g. https://login.example.com
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DirectoryConfig holds directory role lookup settings.
type DirectoryConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Resource string        `yaml:"resource"` // credential audience for directory calls
	Timeout  time.Duration `yaml:"timeout"`
}

// PartnerConfig holds partner backend settings.
type PartnerConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Resource string        `yaml:"resource"` // credential audience for partner calls
	Timeout  time.Duration `yaml:"timeout"`
}

// StoreConfig selects the principal/nonce store backend.
type StoreConfig struct {
	Backend   string        `yaml:"backend"`    // "sqlite" or "redis"
	SQLitePath string       `yaml:"sqlite_path"`
	RedisURL  string        `yaml:"redis_url"`
	TTL       time.Duration `yaml:"ttl"`       // principal record lifetime
	NonceTTL  time.Duration `yaml:"nonce_ttl"` // pending login lifetime
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Addr           string `yaml:"addr"`
	RequestsPerMin int    `yaml:"requests_per_min"`
	Burst          int    `yaml:"burst"`
}

// SweeperConfig holds the expiry sweep schedule.
type SweeperConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 10m"
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Bot: BotConfig{
			Tenant:   "common",
			StateTTL: 15 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		NLU: NLUConfig{
			Timeout:            10 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		QA: QAConfig{
			ScoreThreshold: 0.5,
			Timeout:        10 * time.Second,
		},
		Identity: IdentityConfig{
			Timeout: 30 * time.Second,
		},
		Directory: DirectoryConfig{
			Timeout: 15 * time.Second,
		},
		Partner: PartnerConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "./data/partnerbot.db",
			TTL:        24 * time.Hour,
			NonceTTL:   15 * time.Minute,
		},
		Gateway: GatewayConfig{
			Addr:           ":3978",
			RequestsPerMin: 120,
			Burst:          20,
		},
		Sweeper: SweeperConfig{
			Schedule: "@every 10m",
		},
	}
}

// Load reads the config file, applies env overrides, decrypts "enc:"
// secrets, and validates. A missing file yields the defaults plus env
// overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := validatePermissions(path); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("PARTNERBOT_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PARTNERBOT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARTNERBOT_BOT_ID"); v != "" {
		cfg.Bot.ID = v
	}
	if v := os.Getenv("PARTNERBOT_STATE_SECRET"); v != "" {
		cfg.Bot.StateSecret = v
	}
	if v := os.Getenv("PARTNERBOT_REDIRECT_URI"); v != "" {
		cfg.Bot.RedirectURI = v
	}
	if v := os.Getenv("PARTNERBOT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PARTNERBOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PARTNERBOT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("PARTNERBOT_NLU_KEY"); v != "" {
		cfg.NLU.Key = v
	}
	if v := os.Getenv("PARTNERBOT_QA_KEY"); v != "" {
		cfg.QA.Key = v
	}
	if v := os.Getenv("PARTNERBOT_IDENTITY_CLIENT_SECRET"); v != "" {
		cfg.Identity.ClientSecret = v
	}
	if v := os.Getenv("PARTNERBOT_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("PARTNERBOT_STORE_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("PARTNERBOT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
}

// Validate checks the config for structural problems.
func Validate(cfg *Config) error {
	if cfg.Bot.StateSecret == "" {
		return fmt.Errorf("bot.state_secret is required (or set PARTNERBOT_STATE_SECRET)")
	}
	if len(cfg.Bot.StateSecret) < 32 {
		return fmt.Errorf("bot.state_secret must be at least 32 bytes")
	}
	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if cfg.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be sqlite or redis, got %q", cfg.Store.Backend)
	}
	if cfg.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}
	if cfg.QA.ScoreThreshold < 0 || cfg.QA.ScoreThreshold > 1 {
		return fmt.Errorf("qa.score_threshold must be in [0, 1]")
	}
	return nil
}

// decryptSecrets finds "enc:..." values in secret fields and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"bot.state_secret":       &cfg.Bot.StateSecret,
		"nlu.key":                &cfg.NLU.Key,
		"qa.key":                 &cfg.QA.Key,
		"identity.client_secret": &cfg.Identity.ClientSecret,
	}
	for name, fp := range secrets {
		if strings.HasPrefix(*fp, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*fp = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
