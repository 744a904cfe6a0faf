package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Room     RoomConfig     `mapstructure:"room"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress     string        `mapstructure:"http_address"`
	RPCAddress      string        `mapstructure:"rpc_address"`
	WSPath          string        `mapstructure:"ws_path"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RoomConfig struct {
	SnapshotDelay time.Duration `mapstructure:"snapshot_delay"`
	EvictionGrace time.Duration `mapstructure:"eviction_grace"`
	MoveInterval  time.Duration `mapstructure:"move_interval"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	Defaults      MapDefaults   `mapstructure:"defaults"`
}

// MapDefaults seeds the map configuration of rooms that have never been saved.
type MapDefaults struct {
	GridSize      float64 `mapstructure:"grid_size"`
	SnapToGrid    bool    `mapstructure:"snap_to_grid"`
	FogEnabled    bool    `mapstructure:"fog_enabled"`
	FogPersistent bool    `mapstructure:"fog_persistent"`
	Width         float64 `mapstructure:"width"`
	Height        float64 `mapstructure:"height"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.ws_path", "/vtt")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("room.snapshot_delay", 5*time.Second)
	v.SetDefault("room.eviction_grace", 30*time.Second)
	v.SetDefault("room.move_interval", 33*time.Millisecond)
	v.SetDefault("room.save_timeout", 5*time.Second)
	v.SetDefault("room.send_buffer", 256)
	v.SetDefault("room.defaults.grid_size", 50)
	v.SetDefault("room.defaults.snap_to_grid", true)
	v.SetDefault("room.defaults.fog_enabled", false)
	v.SetDefault("room.defaults.fog_persistent", true)
	v.SetDefault("room.defaults.width", 1920)
	v.SetDefault("room.defaults.height", 1080)

	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "tabletop")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.sqlite.path", "data/tabletop.db")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.prefix", "tabletop")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "tabletop.rooms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path (optional), then .env, then VTT_* environment variables.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("VTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
