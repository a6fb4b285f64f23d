package config

import (
	"fmt"
	"mime"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:3000"
	DefaultUploadDir  = "uploads"
	DefaultPublicPath = "/uploads"
	DefaultLogLevel   = "info"
	ConfigFileName    = ".smarttracker.toml"

	DefaultUploadMaxBytes           int64 = 5 * 1024 * 1024
	DefaultUploadMultipartMaxMemory int64 = 8 * 1024 * 1024

	configDirEnvKey          = "SMARTTRACKER_CONFIG_DIR"
	trustProjectConfigEnvKey = "SMARTTRACKER_TRUST_PROJECT_CONFIG"
	dotenvFileEnvKey         = "SMARTTRACKER_ENV_FILE"

	apiURLEnvKey      = "SMARTTRACKER_API_URL"
	portEnvKey        = "PORT"
	uploadDirEnvKey   = "SMARTTRACKER_UPLOAD_DIR"
	publicURLEnvKey   = "SMARTTRACKER_PUBLIC_URL"
	logLevelEnvKey    = "SMARTTRACKER_LOG_LEVEL"
	corsOriginsEnvKey = "SMARTTRACKER_CORS_ORIGINS"
)

// UploadConfig defines runtime configuration for image uploads.
type UploadConfig struct {
	MaxBytes           int64    `toml:"max_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedExtensions  []string `toml:"allowed_extensions"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
}

// Config defines runtime configuration for smarttracker.
type Config struct {
	APIURL      string       `toml:"api_url"`
	PublicURL   string       `toml:"public_url"`
	UploadDir   string       `toml:"upload_dir"`
	PublicPath  string       `toml:"public_path"`
	LogLevel    string       `toml:"log_level"`
	CORSOrigins []string     `toml:"cors_origins"`
	Uploads     UploadConfig `toml:"uploads"`

	// LoadedFrom lists config files that were applied, in order.
	LoadedFrom []string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		UploadDir:  DefaultUploadDir,
		PublicPath: DefaultPublicPath,
		LogLevel:   DefaultLogLevel,
		Uploads: UploadConfig{
			MaxBytes:           DefaultUploadMaxBytes,
			MultipartMaxMemory: DefaultUploadMultipartMaxMemory,
			AllowedExtensions:  []string{".jpeg", ".jpg", ".png", ".gif"},
			AllowedMediaTypes:  []string{"image/gif", "image/jpeg", "image/png"},
		},
	}
}

func loadFile(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, ConfigFileName), true
}

func trustProjectConfig() bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey)))
	return err == nil && value
}

var allowedKeys = []string{
	"api_url",
	"public_url",
	"upload_dir",
	"public_path",
	"log_level",
	"cors_origins",
	"uploads.max_bytes",
	"uploads.multipart_max_memory",
	"uploads.allowed_extensions",
	"uploads.allowed_media_types",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "public_url":
		return c.PublicURL, nil
	case "upload_dir":
		return c.UploadDir, nil
	case "public_path":
		return c.PublicPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "cors_origins":
		return strings.Join(c.CORSOrigins, ","), nil
	case "uploads.max_bytes":
		return strconv.FormatInt(c.Uploads.MaxBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.allowed_extensions":
		return strings.Join(c.Uploads.AllowedExtensions, ","), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ConfigFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files, a .env file, and env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if _, err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if _, err := loadFile(filepath.Join(home, ConfigFileName), &cfg); err != nil {
				return nil, err
			}
		}
		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				if _, err := loadFile(filepath.Join(cwd, ConfigFileName), &cfg); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := loadDotenv(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

// loadDotenv fills unset env vars from a .env file. A missing file is fine.
func loadDotenv() error {
	path := strings.TrimSpace(os.Getenv(dotenvFileEnvKey))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if apiURL := strings.TrimSpace(os.Getenv(apiURLEnvKey)); apiURL != "" {
		c.APIURL = apiURL
	} else if port := strings.TrimSpace(os.Getenv(portEnvKey)); port != "" {
		withPort, err := replacePort(c.APIURL, port)
		if err != nil {
			return err
		}
		c.APIURL = withPort
	}
	if dir := strings.TrimSpace(os.Getenv(uploadDirEnvKey)); dir != "" {
		c.UploadDir = dir
	}
	if publicURL := strings.TrimSpace(os.Getenv(publicURLEnvKey)); publicURL != "" {
		c.PublicURL = publicURL
	}
	if level := strings.TrimSpace(os.Getenv(logLevelEnvKey)); level != "" {
		c.LogLevel = level
	}
	if origins := strings.TrimSpace(os.Getenv(corsOriginsEnvKey)); origins != "" {
		c.CORSOrigins = splitCSV(origins)
	}
	return nil
}

func replacePort(apiURL, port string) (string, error) {
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid %s %q", portEnvKey, port)
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid api_url %q", apiURL)
	}
	u.Host = net.JoinHostPort(u.Hostname(), port)
	return u.String(), nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "cors_origins", "uploads.allowed_extensions", "uploads.allowed_media_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	defaults := Default()
	if strings.TrimSpace(c.UploadDir) == "" {
		c.UploadDir = defaults.UploadDir
	}
	if strings.TrimSpace(c.PublicPath) == "" {
		c.PublicPath = defaults.PublicPath
	}
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = DefaultUploadMaxBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultUploadMultipartMaxMemory
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = defaults.Uploads.AllowedExtensions
	}
	c.Uploads.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Uploads.AllowedMediaTypes)
	if len(c.Uploads.AllowedMediaTypes) == 0 {
		c.Uploads.AllowedMediaTypes = defaults.Uploads.AllowedMediaTypes
	}
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
