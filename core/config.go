package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address

		PasswordResetTimeoutDelta time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Cache      CacheConfig
		Classifier ClassifierConfig
		Digest     DigestConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		DisableReqLogs            bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3 | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		SQLitePath    string
	}

	CacheConfig struct {
		Disabled bool
		Address  string
		Password string
		DB       int
		TTL      time.Duration
	}

	ClassifierConfig struct {
		URL       string
		Timeout   time.Duration
		RateLimit float64 // requests per second
		Burst     int
	}

	DigestConfig struct {
		Disabled bool
		Schedule string // 5-field cron expression
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the configuration from the defaults, the optional `config/.env.<env>` file
// and the environment (prefixed with the current ENV, eg. `PROD_DATABASE_HOST`).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Evaluo")
	v.SetDefault("secretKey", "k3x!7pz^ev@lu0-d0c3nt3s#2q$w8n&m1r(t)y+b6c=f")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Evaluo <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "evaluo")
	v.SetDefault("database.user", "evaluo")
	v.SetDefault("database.password", "evaluo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.sqlitePath", "evaluo.db")

	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.timeout", 10*time.Second)
	v.SetDefault("classifier.rateLimit", 5.0)
	v.SetDefault("classifier.burst", 5)

	v.SetDefault("digest.disabled", false)
	v.SetDefault("digest.schedule", "0 8 * * 1") // mondays at 8am

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: *from,

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			SQLitePath:    v.GetString("database.sqlitePath"),
		},
		Cache: CacheConfig{
			Disabled: v.GetBool("cache.disabled"),
			Address:  v.GetString("cache.address"),
			Password: v.GetString("cache.password"),
			DB:       v.GetInt("cache.db"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		Classifier: ClassifierConfig{
			URL:       v.GetString("classifier.url"),
			Timeout:   v.GetDuration("classifier.timeout"),
			RateLimit: v.GetFloat64("classifier.rateLimit"),
			Burst:     v.GetInt("classifier.burst"),
		},
		Digest: DigestConfig{
			Disabled: v.GetBool("digest.disabled"),
			Schedule: v.GetString("digest.schedule"),
		},
	}
}

// configDir returns $CONFIG_DIR or "./config".
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(fmt.Errorf("config.os.Getwd: %w", err))
	}
	return filepath.Join(wd, "config")
}
