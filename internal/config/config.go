package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"prod"`
	Storage     `yaml:"storage"`
	HTTPServer  `yaml:"http_server"`
	Methodology `yaml:"methodology"`
	Recompute   `yaml:"recompute"`
	Log         `yaml:"log"`

	AdminLogin string `yaml:"admin_login" env:"ADMIN_LOGIN"`
	AdminPass  string `yaml:"admin_pass" env:"ADMIN_PASS"`
}

type Storage struct {
	Driver     string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"`
	Path       string `yaml:"path" env:"DB_PATH"` // sqlite3 only
	DBUser     string `yaml:"db_user" env:"DB_USER"`
	DBPassword string `yaml:"db_password" env:"DB_PASSWORD"`
	DBHost     string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort     int    `yaml:"db_port" env:"DB_PORT" env-default:"3306"`
	DBName     string `yaml:"db_name" env:"DB_NAME"`
	ParseTime  bool   `yaml:"parse_time" env-default:"true"`
}

type HTTPServer struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4001"`
	Timeout        time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env-default:"http://localhost:5173"`
}

// Methodology holds the heuristic thresholds of the UPH calculation.
// Changing any value is a new methodology version.
type Methodology struct {
	Version                string  `yaml:"version" env-default:"uph-v2"`
	CorruptionMaxSeconds   int64   `yaml:"corruption_max_duration_seconds" env-default:"60"`
	CorruptionMinGroupSize int     `yaml:"corruption_min_group_size" env-default:"3"`
	MinDurationMinutes     float64 `yaml:"min_duration_minutes" env-default:"5"`
	MaxUphAssembly         float64 `yaml:"max_uph_assembly" env-default:"100"`
	MaxUphCutting          float64 `yaml:"max_uph_cutting" env-default:"500"`
	MaxUphPackaging        float64 `yaml:"max_uph_packaging" env-default:"300"`
}

type Recompute struct {
	Schedule string        `yaml:"schedule" env:"RECOMPUTE_SCHEDULE"`
	Windows  []int         `yaml:"windows" env-default:"7,30,180"`
	States   []string      `yaml:"states" env-default:"done"`
	PageSize int           `yaml:"page_size" env-default:"5000"`
	Workers  int           `yaml:"workers" env-default:"4"`
	Timeout  time.Duration `yaml:"timeout" env-default:"10m"`
	History  int           `yaml:"history" env-default:"20"`
}

type Log struct {
	ErrorFile string `yaml:"error_file" env-default:"errors.log"`
}

// Path is the config file location: CONFIG_PATH or ./config/local.yaml.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func MustConfig() *Config {
	cfg, err := Load(Path())
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "mysql":
		if c.Storage.DBUser == "" || c.Storage.DBName == "" {
			return fmt.Errorf("storage: db_user and db_name are required for mysql")
		}
	case "sqlite3":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: path is required for sqlite3")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}

	if len(c.Recompute.Windows) == 0 {
		return fmt.Errorf("recompute: at least one window is required")
	}
	for _, w := range c.Recompute.Windows {
		if w <= 0 {
			return fmt.Errorf("recompute: window must be positive, got %d", w)
		}
	}

	m := c.Methodology
	if m.CorruptionMinGroupSize < 2 {
		return fmt.Errorf("methodology: corruption_min_group_size must be at least 2")
	}
	if m.MinDurationMinutes < 0 || m.MaxUphAssembly <= 0 || m.MaxUphCutting <= 0 || m.MaxUphPackaging <= 0 {
		return fmt.Errorf("methodology: thresholds must be positive")
	}

	return nil
}
