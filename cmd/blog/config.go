package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/blog/internal/logger"
)

const (
	defaultListenAddr                = "localhost:8000"
	defaultLoggingLevel              = logger.LevelInfo
	defaultEnvironment               = logger.EnvProduction
	defaultJWTAlgorithm              = "HS256"
	defaultAccessTokenExpireMinutes  = 30
	defaultRefreshTokenExpireMinutes = 21600
	defaultRedisURL                  = "redis://localhost:6379/0"
	defaultRedisTimeout              = 5 * time.Second
	defaultRedisMaxConnections       = 10
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the blog service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// JWT signing algorithm, one of HS256, HS384, HS512
	JWTAlgorithm string

	// Token lifetimes in minutes
	AccessTokenExpireMinutes  int
	RefreshTokenExpireMinutes int

	// Redis keeps revoked tokens
	RedisURL            string
	RedisTimeout        time.Duration
	RedisMaxConnections int

	// Send refresh cookie over plain http. Allowed in dev environment only
	CookieInsecure bool

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:                  defaultLoggingLevel,
		ListenAddr:                defaultListenAddr,
		Environment:               defaultEnvironment,
		JWTAlgorithm:              defaultJWTAlgorithm,
		AccessTokenExpireMinutes:  defaultAccessTokenExpireMinutes,
		RefreshTokenExpireMinutes: defaultRefreshTokenExpireMinutes,
		RedisURL:                  defaultRedisURL,
		RedisTimeout:              defaultRedisTimeout,
		RedisMaxConnections:       defaultRedisMaxConnections,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":                  setString(&c.ListenAddr),
		"DATABASE_URI":                 setString(&c.DatabaseDSN),
		"SECRET_KEY":                   setString(&c.SecretKey),
		"LOG_LEVEL":                    setString(&c.LogLevel),
		"ENVIRONMENT":                  setString(&c.Environment),
		"JWT_ALGORITHM":                setString(&c.JWTAlgorithm),
		"ACCESS_TOKEN_EXPIRE_MINUTES":  setInt(&c.AccessTokenExpireMinutes),
		"REFRESH_TOKEN_EXPIRE_MINUTES": setInt(&c.RefreshTokenExpireMinutes),
		"REDIS_URL":                    setString(&c.RedisURL),
		"REDIS_TIMEOUT":                setDuration(&c.RedisTimeout),
		"REDIS_MAX_CONNECTIONS":        setInt(&c.RedisMaxConnections),
		"COOKIE_INSECURE":              setBool(&c.CookieInsecure),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s value. Err: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("blog", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.JWTAlgorithm, "jwt-algorithm", c.JWTAlgorithm, "JWT signing algorithm (HS256, HS384, HS512)")
	fs.IntVar(&c.AccessTokenExpireMinutes, "access-token-expire", c.AccessTokenExpireMinutes, "Access token lifetime, minutes")
	fs.IntVar(&c.RefreshTokenExpireMinutes, "refresh-token-expire", c.RefreshTokenExpireMinutes, "Refresh token lifetime, minutes")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.DurationVar(&c.RedisTimeout, "redis-timeout", c.RedisTimeout, "Redis connect and operation timeout")
	fs.IntVar(&c.RedisMaxConnections, "redis-max-connections", c.RedisMaxConnections, "Redis connection pool size")
	fs.BoolVar(&c.CookieInsecure, "cookie-insecure", c.CookieInsecure, "Send refresh cookie over plain http (dev only)")

	return fs.Parse(args)
}

// Check options that can't be checked by their consumers
func (c *Config) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("secret key must be set")
	case c.AccessTokenExpireMinutes <= 0 || c.RefreshTokenExpireMinutes <= 0:
		return errors.New("token lifetimes must be positive")
	case c.CookieInsecure && c.Environment != logger.EnvDevelopment:
		return fmt.Errorf("insecure cookie allowed in %q environment only", logger.EnvDevelopment)
	default:
		return nil
	}
}
