package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DevEnvFile holds local development overrides (e.g. DEV_MODEL_PATH).
const DevEnvFile = ".env.caption"

// Config holds runtime parameters for the captioning service.
// Zero values mean "unspecified"; ApplyEnv fills them from the environment
// and the env-default tags.
type Config struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr" env:"CAPTIOND_ADDR" env-description:"listen address, overrides PORT"`
	Port          int    `json:"port" yaml:"port" toml:"port" env:"PORT" env-default:"11435" env-description:"listen port"`
	ModelPath     string `json:"model_path" yaml:"model_path" toml:"model_path" env:"MODEL_PATH" env-description:"weights file (.gguf)"`
	DevModelPath  string `json:"dev_model_path" yaml:"dev_model_path" toml:"dev_model_path" env:"DEV_MODEL_PATH" env-description:"development weights file, wins over MODEL_PATH"`
	ProjectorPath string `json:"mmproj_path" yaml:"mmproj_path" toml:"mmproj_path" env:"MMPROJ_PATH" env-description:"vision projector file (.gguf)"`
	ModelsDir     string `json:"models_dir" yaml:"models_dir" toml:"models_dir" env:"MODELS_DIR" env-default:"/workspace/models" env-description:"directory scanned for weights when no path is set"`

	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers" env:"N_GPU_LAYERS" env-default:"-1" env-description:"layers offloaded to the GPU (-1 = all)"`
	CtxSize   int `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size" env:"N_CTX" env-default:"4096" env-description:"context window in tokens"`
	Threads   int `json:"threads" yaml:"threads" toml:"threads" env:"N_THREADS" env-description:"CPU threads (0 = runtime default)"`

	IdleTimeoutSeconds  int `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds" env:"IDLE_TIMEOUT_SECONDS" env-default:"180" env-description:"unload the model after this many idle seconds (<=0 disables)"`
	ReapIntervalSeconds int `json:"reap_interval_seconds" yaml:"reap_interval_seconds" toml:"reap_interval_seconds" env:"REAP_INTERVAL_SECONDS" env-default:"10" env-description:"how often the idle check runs"`

	Preload        bool   `json:"preload" yaml:"preload" toml:"preload" env:"PRELOAD" env-description:"load the model at startup"`
	LlamaServerBin string `json:"llama_server_bin" yaml:"llama_server_bin" toml:"llama_server_bin" env:"LLAMA_SERVER_BIN" env-default:"llama-server" env-description:"llama.cpp server binary"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL" env-default:"info" env-description:"debug|info|warn|error"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" env:"LOG_FORMAT" env-default:"console" env-description:"console|json"`

	MaxBodyMB    int      `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb" env:"MAX_BODY_MB" env-default:"32" env-description:"request body limit in MiB"`
	MaxImageSide int      `json:"max_image_side" yaml:"max_image_side" toml:"max_image_side" env:"MAX_IMAGE_SIDE" env-description:"downscale images so the longest side fits (0 disables)"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" env:"CORS_ENABLED" env-default:"true" env-description:"enable CORS handling"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-description:"allowed origins (comma-separated, empty = *)"`
}

// ListenAddr returns Addr, or ":<Port>" when Addr is empty.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// IdleTimeout converts IdleTimeoutSeconds to a duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// ReapInterval converts ReapIntervalSeconds to a duration.
func (c Config) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSeconds) * time.Second
}

// explicitZeros records fields a config file sets explicitly. For these a
// zero is meaningful (CPU only, never unload, CORS off) but cleanenv would
// replace it with the env-default.
type explicitZeros struct {
	GPULayers          *int  `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	IdleTimeoutSeconds *int  `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds"`
	CORSEnabled        *bool `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
}

// restore puts explicit file values back after the env overlay, unless the
// matching environment variable is set.
func (z explicitZeros) restore(cfg *Config) {
	if _, set := os.LookupEnv("N_GPU_LAYERS"); z.GPULayers != nil && !set {
		cfg.GPULayers = *z.GPULayers
	}
	if _, set := os.LookupEnv("IDLE_TIMEOUT_SECONDS"); z.IdleTimeoutSeconds != nil && !set {
		cfg.IdleTimeoutSeconds = *z.IdleTimeoutSeconds
	}
	if _, set := os.LookupEnv("CORS_ENABLED"); z.CORSEnabled != nil && !set {
		cfg.CORSEnabled = *z.CORSEnabled
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg, _, err := loadFile(path)
	return cfg, err
}

func loadFile(path string) (Config, explicitZeros, error) {
	var cfg Config
	var z explicitZeros
	if path == "" {
		return cfg, z, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, z, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if err := decode(ext, b, &cfg); err != nil {
		return cfg, z, err
	}
	if err := decode(ext, b, &z); err != nil {
		return cfg, z, err
	}
	return cfg, z, nil
}

func decode(ext string, b []byte, v any) error {
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// ApplyEnv overlays environment variables onto cfg. Variables that are set
// always win; env-default values only fill fields that are still zero.
func ApplyEnv(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read env: %w", err)
	}
	return nil
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and variables that are already set
// are never overridden.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Resolve builds the effective configuration: dotenv files, then the optional
// config file, then the environment overlay and defaults.
func Resolve(path string) (Config, error) {
	if err := LoadDotenv(DevEnvFile); err != nil {
		return Config{}, err
	}
	var cfg Config
	var z explicitZeros
	if path != "" {
		c, zz, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg, z = c, zz
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	z.restore(&cfg)
	return cfg, nil
}

// EnvUsage renders the environment variables understood by Config, for CLI help.
func EnvUsage() string {
	header := "Environment variables:"
	s, err := cleanenv.GetDescription(&Config{}, &header)
	if err != nil {
		return ""
	}
	return s
}
