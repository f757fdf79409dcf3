package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite DSN
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int

		BreakerMaxRequests      uint32
		BreakerInterval         time.Duration
		BreakerTimeout          time.Duration
		BreakerFailureThreshold uint32
	}

	CacheConfig struct {
		Backend           string // memory | redis
		Codec             string // msgpack | json
		CompressThreshold int    // bytes
	}

	SchedulerConfig struct {
		Enabled         bool
		Interval        time.Duration
		OverdueInterval time.Duration
		Concurrency     int
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Cache     CacheConfig
		Scheduler SchedulerConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the configuration for the current ENV (DEV by default) from the environment
// and the optional config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Soko")
	v.SetDefault("secretKey", "s0k0-8fq@x!v6m%tz+2_d#k9r^w(ye4n1)jhc$up7b=ga3o&l")
	v.SetDefault("defaultFromEmail", "Soko <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "soko")
	v.SetDefault("database.user", "soko")
	v.SetDefault("database.password", "soko")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "file:soko.db?_time_format=sqlite")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.breakerMaxRequests", uint32(1))
	v.SetDefault("redis.breakerInterval", time.Minute)
	v.SetDefault("redis.breakerTimeout", 30*time.Second)
	v.SetDefault("redis.breakerFailureThreshold", uint32(5))

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.codec", "msgpack")
	v.SetDefault("cache.compressThreshold", 4096)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.overdueInterval", 30*time.Minute)
	v.SetDefault("scheduler.concurrency", 4)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
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
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: *from,
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Address:                 v.GetString("redis.address"),
			Password:                v.GetString("redis.password"),
			DB:                      v.GetInt("redis.db"),
			BreakerMaxRequests:      v.GetUint32("redis.breakerMaxRequests"),
			BreakerInterval:         v.GetDuration("redis.breakerInterval"),
			BreakerTimeout:          v.GetDuration("redis.breakerTimeout"),
			BreakerFailureThreshold: v.GetUint32("redis.breakerFailureThreshold"),
		},
		Cache: CacheConfig{
			Backend:           v.GetString("cache.backend"),
			Codec:             v.GetString("cache.codec"),
			CompressThreshold: v.GetInt("cache.compressThreshold"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         v.GetBool("scheduler.enabled"),
			Interval:        v.GetDuration("scheduler.interval"),
			OverdueInterval: v.GetDuration("scheduler.overdueInterval"),
			Concurrency:     v.GetInt("scheduler.concurrency"),
		},
	}
}
