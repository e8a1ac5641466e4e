package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Mail      MailConfig
	Policy    PolicyConfig
	Bootstrap BootstrapConfig
}

type ServerConfig struct {
	Port           string
	AppName        string        `mapstructure:"app_name"`
	ClientOrigins  []string      `mapstructure:"client_origins"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// EventChannel is the pub/sub channel domain events are forwarded to.
	EventChannel string `mapstructure:"event_channel"`
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
}

// MailConfig configures the SMTP client. An empty Host selects the logging mailer.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
	ResetTTL time.Duration `mapstructure:"reset_ttl"`
}

// PolicyConfig holds the switches for behaviors that differed between
// revisions of the hour/course rules.
type PolicyConfig struct {
	// TrainerEditWindow limits how long after creation a trainer may update or
	// delete an hour entry. Zero disables the window.
	TrainerEditWindow time.Duration `mapstructure:"trainer_edit_window"`
	// EnforceTeacherDepartment requires a course's teacher to belong to the
	// course's department.
	EnforceTeacherDepartment bool `mapstructure:"enforce_teacher_department"`
}

type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5000")
	v.SetDefault("server.app_name", "gestionlearn")
	v.SetDefault("server.client_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("server.request_timeout", 5*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "gestionlearn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.table_prefix", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.event_channel", "gestionlearn.events")

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@example.com")
	v.SetDefault("mail.ssl", false)
	v.SetDefault("mail.reset_ttl", 15*time.Minute)

	v.SetDefault("policy.trainer_edit_window", time.Duration(0))
	v.SetDefault("policy.enforce_teacher_department", false)

	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")
}

// Load reads config.yaml from the given directories (default "." and
// "./config"), then lets environment variables override any key, e.g.
// JWT_ACCESS_SECRET for jwt.access_secret.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Config: .env loaded")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Println("Config: no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load for main: it aborts the process on error.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.access_secret and jwt.refresh_secret must be set")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.access_secret and jwt.refresh_secret must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("jwt ttl values must be positive")
	}
	if c.Policy.TrainerEditWindow < 0 {
		return fmt.Errorf("policy.trainer_edit_window must not be negative")
	}
	return nil
}

// DSN builds the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}
