package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	LogLevel    string     `mapstructure:"log_level"`
	MetricsPath string     `mapstructure:"metrics_path"`
	HTTP        HTTPConfig `mapstructure:"http"`
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type ThrottleWindow struct {
	Limit  int
	Window time.Duration
}

type ThrottleRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ThrottleConfig holds the three per-client request windows applied to
// every inbound request.
type ThrottleConfig struct {
	Short  ThrottleWindow
	Medium ThrottleWindow
	Long   ThrottleWindow
	Redis  ThrottleRedisConfig
}

type FirebaseConfig struct {
	ProjectID string
	APIKey    string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type Config struct {
	App              AppConfig
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	BcryptCost       int
	DB               DBConfig
	Throttle         ThrottleConfig
	Firebase         FirebaseConfig
	Cloudinary       CloudinaryConfig
	Kafka            KafkaConfig
}

func Load() (*Config, error) {
	appCfg, err := loadApp(os.Getenv("GRIHA_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:              *appCfg,
		JWTAccessSecret:  envString("GRIHA_JWT_SECRET", ""),
		JWTRefreshSecret: envString("GRIHA_JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:   envDuration("GRIHA_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  envDuration("GRIHA_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:       envInt("GRIHA_BCRYPT_COST", 10),
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "grihahomes"),
			User:     envString("POSTGRES_USER", "griha"),
			Password: envString("POSTGRES_PASSWORD", "griha"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		Throttle: ThrottleConfig{
			Short:  ThrottleWindow{Limit: envInt("GRIHA_THROTTLE_SHORT_LIMIT", 3), Window: envDuration("GRIHA_THROTTLE_SHORT_WINDOW", time.Second)},
			Medium: ThrottleWindow{Limit: envInt("GRIHA_THROTTLE_MEDIUM_LIMIT", 20), Window: envDuration("GRIHA_THROTTLE_MEDIUM_WINDOW", 10*time.Second)},
			Long:   ThrottleWindow{Limit: envInt("GRIHA_THROTTLE_LONG_LIMIT", 100), Window: envDuration("GRIHA_THROTTLE_LONG_WINDOW", time.Minute)},
			Redis: ThrottleRedisConfig{
				Addr:     envString("GRIHA_THROTTLE_REDIS_ADDR", ""),
				Password: envString("GRIHA_THROTTLE_REDIS_PASSWORD", ""),
				DB:       envInt("GRIHA_THROTTLE_REDIS_DB", 0),
				Prefix:   envString("GRIHA_THROTTLE_REDIS_PREFIX", "griha:rl:"),
			},
		},
		Firebase: FirebaseConfig{
			ProjectID: envString("FIREBASE_PROJECT_ID", ""),
			APIKey:    envString("FIREBASE_WEB_API_KEY", ""),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: envString("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    envString("CLOUDINARY_API_KEY", ""),
			APISecret: envString("CLOUDINARY_API_SECRET", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("GRIHA_KAFKA_BROKERS"),
			TopicPrefix: envString("GRIHA_KAFKA_TOPIC_PREFIX", "griha"),
		},
	}

	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("GRIHA_JWT_SECRET must be set")
	}
	if cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("GRIHA_JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}

	return cfg, nil
}

func loadApp(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GRIHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "grihahomes-api")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
