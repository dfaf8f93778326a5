package fbconfig

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Production  bool              `yaml:"production"`
	Listen      ListenConfig      `yaml:"listen"`
	Database    DatabaseConfig    `yaml:"database"`
	Logger      LoggerConfig      `yaml:"logger"`
	Auth        AuthConfig        `yaml:"auth"`
	User        UserConfig        `yaml:"user"`
	Captcha     CaptchaConfig     `yaml:"captcha"`
	GeoIP       GeoIPConfig       `yaml:"geoip"`
	Payments    PaymentsConfig    `yaml:"payments"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	CORS        CORSConfig        `yaml:"cors"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

type DatabaseConfig struct {
	Redis RedisConfig `yaml:"redis"`
	Db    string      `yaml:"db"`
	Path  string      `yaml:"path"`
	Dsn   string      `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwtsecret"`
	TokenTTL  time.Duration `yaml:"tokenttl"`
}

// UserConfig seeds the first operator account.
type UserConfig struct {
	Login string `yaml:"login"`
	Name  string `yaml:"name"`
	Pass  string `yaml:"pass"`
	Hash  string `yaml:"hash"`
}

type CaptchaConfig struct {
	Enabled bool `yaml:"enabled"`
}

type GeoIPConfig struct {
	Path string `yaml:"path"`
}

type PaymentsConfig struct {
	Gateway string        `yaml:"gateway"`
	Timeout time.Duration `yaml:"timeout"`
}

type TrackingConfig struct {
	RateLimit    string `yaml:"ratelimit"`
	CookieSecret string `yaml:"cookiesecret"`
}

type MaintenanceConfig struct {
	OfflineSpec   string `yaml:"offlinespec"`
	CleanupSpec   string `yaml:"cleanupspec"`
	RetentionDays int    `yaml:"retentiondays"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

const (
	DefaultFilename = "funnelboard.yaml"
	minPassLength   = 8
)

func CreateExampleConfig(filename string) error {
	example := &Config{
		Production: false,
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
			Metrics: "127.0.0.1:8090",
		},
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./funnelboard.db",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWTSecret: "change-me",
			TokenTTL:  time.Hour,
		},
		User: UserConfig{
			Login: "admin@example.com",
			Name:  "Admin",
			Pass:  "admin1234",
		},
		Payments: PaymentsConfig{
			Gateway: "simulated",
			Timeout: 10 * time.Second,
		},
		Tracking: TrackingConfig{
			RateLimit: "120-M",
		},
		Maintenance: MaintenanceConfig{
			OfflineSpec:   "@every 1m",
			CleanupSpec:   "0 3 * * *",
			RetentionDays: 30,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
	}
	return WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0600)
}

// LoadConfig reads the YAML file without validating it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("yaml parsing: %w", err)
	}

	return &config, nil
}

// Load reads the file, applies .env overrides and defaults, validates the
// result and hashes a plain seed password back into the file.
func Load(filename string) (*Config, error) {
	conf, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
	applyEnv(conf)
	applyDefaults(conf)

	if err := Validate(conf); err != nil {
		return nil, err
	}

	if conf.User.Pass != "" {
		if err := HashSeedPassword(conf); err != nil {
			return nil, err
		}
		if err := WriteConfigYaml(filename, conf); err != nil {
			return nil, err
		}
	}

	return conf, nil
}

func applyEnv(conf *Config) {
	if v := os.Getenv("FUNNELBOARD_DB_DSN"); v != "" {
		conf.Database.Dsn = v
	}
	if v := os.Getenv("FUNNELBOARD_JWT_SECRET"); v != "" {
		conf.Auth.JWTSecret = v
	}
	if v := os.Getenv("FUNNELBOARD_REDIS_ADDR"); v != "" {
		conf.Database.Redis.Addr = v
	}
	if v := os.Getenv("FUNNELBOARD_LISTEN"); v != "" {
		conf.Listen.Website = v
	}
}

func applyDefaults(conf *Config) {
	if conf.Listen.Website == "" {
		conf.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(conf.Listen.Website, ":") {
		conf.Listen.Website = "localhost" + conf.Listen.Website
	}
	if conf.Auth.TokenTTL <= 0 {
		conf.Auth.TokenTTL = time.Hour
	}
	if conf.Payments.Gateway == "" {
		conf.Payments.Gateway = "simulated"
	}
	if conf.Payments.Timeout <= 0 {
		conf.Payments.Timeout = 10 * time.Second
	}
	if conf.Tracking.RateLimit == "" {
		conf.Tracking.RateLimit = "120-M"
	}
	if conf.Maintenance.OfflineSpec == "" {
		conf.Maintenance.OfflineSpec = "@every 1m"
	}
	if conf.Maintenance.CleanupSpec == "" {
		conf.Maintenance.CleanupSpec = "0 3 * * *"
	}
	if conf.Maintenance.RetentionDays <= 0 {
		conf.Maintenance.RetentionDays = 30
	}
}

func Validate(conf *Config) error {
	switch conf.Database.Db {
	case "sqlite":
		if conf.Database.Path == "" {
			return fmt.Errorf("database.path cannot be empty")
		}
	case "mysql", "postgres":
		if conf.Database.Dsn == "" {
			return fmt.Errorf("database.dsn cannot be empty")
		}
	case "":
		return fmt.Errorf("database.db cannot be empty")
	default:
		return fmt.Errorf("database.db must be sqlite, mysql or postgres")
	}
	if conf.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtsecret cannot be empty")
	}
	if conf.Production && conf.Auth.JWTSecret == "change-me" {
		return fmt.Errorf("auth.jwtsecret must be changed in production")
	}
	switch conf.Payments.Gateway {
	case "simulated", "skalepay":
	default:
		return fmt.Errorf("payments.gateway must be simulated or skalepay")
	}
	if conf.User.Pass != "" && len(conf.User.Pass) < minPassLength {
		return fmt.Errorf("user.pass must be at least %d characters", minPassLength)
	}
	return nil
}

// HashSeedPassword replaces the plain seed password by its argon2 hash.
func HashSeedPassword(conf *Config) error {
	hash, err := argon2.GenerateFromPassword([]byte(conf.User.Pass), argon2.DefaultParams)
	if err != nil {
		return err
	}
	conf.User.Hash = string(hash)
	conf.User.Pass = ""
	return nil
}

// CreateExample writes an example file and exits when asked to, or when the
// configuration file does not exist yet.
func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = DefaultFilename
	}
	if err := CreateExampleConfig(filename); err != nil {
		return fmt.Errorf("example creation: %w", err)
	}

	fmt.Printf("✅ Example file created: %s\n", filename)
	fmt.Println("⚠️  user.pass is hashed with argon2 into user.hash on first start")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Funnelboard version %s", version)
	logPrintf("Production mode %v", config.Production)
	logPrintf("Database %s", config.Database.Db)
	if config.Database.Db == "sqlite" {
		logPrintf("  • Path %s", config.Database.Path)
	}
	if config.Database.Redis.Addr != "" {
		logPrintf("  • Redis %s", config.Database.Redis.Addr)
	}
	logPrintf("Payment gateway %s", config.Payments.Gateway)
	logPrintf("Captcha on registration %v", config.Captcha.Enabled)
	if config.GeoIP.Path != "" {
		logPrintf("GeoIP database %s", config.GeoIP.Path)
	}
	logPrintf("Maintenance offline=%q cleanup=%q retention=%dd",
		config.Maintenance.OfflineSpec, config.Maintenance.CleanupSpec, config.Maintenance.RetentionDays)
	logPrintf("Logger level %s file=%v syslog=%v", config.Logger.Level, config.Logger.File.Enable, config.Logger.Syslog.Enable)
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
