package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	TLS struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBName         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Metrics        bool   `mapstructure:"METRICS"`
		Tracing        bool   `mapstructure:"TRACING"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// Admin carries the shared admin secret used by the x-admin-secret gate
	// and by the password step of the 2FA login flow. PasswordHash (bcrypt)
	// wins over Password when both are set.
	Admin struct {
		Password     string `mapstructure:"PASSWORD"`
		PasswordHash string `mapstructure:"PASSWORD_HASH"`
		Email        string `mapstructure:"EMAIL"`
	} `mapstructure:"ADMIN"`
	Invoice struct {
		Prefix  string `mapstructure:"PREFIX"`
		DueDays int    `mapstructure:"DUE_DAYS"`
		VatRate int    `mapstructure:"VAT_RATE"`
	} `mapstructure:"INVOICE"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	applyDefaults(&cfg)

	if p.Vault != nil {
		client := p.Vault
		ctx := context.Background()

		zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
		secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
		if err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("Success Get Secret")

		get := func(key string) string {
			if val, ok := secret.Data.Data[key].(string); ok {
				return val
			}
			return ""
		}

		if v := get("postgres_user"); v != "" {
			cfg.Database.User = v
		}
		if v := get("postgres_password"); v != "" {
			cfg.Database.Password = v
		}
		if v := get("redis_password"); v != "" {
			cfg.Redis.Password = v
		}
		if v := get("admin_password"); v != "" {
			cfg.Admin.Password = v
		}
		if v := get("admin_password_hash"); v != "" {
			cfg.Admin.PasswordHash = v
		}
	}

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Admin.Email == "" {
		cfg.Admin.Email = "admin@sportflow-license.local"
	}
	if cfg.Invoice.Prefix == "" {
		cfg.Invoice.Prefix = "SF"
	}
	if cfg.Invoice.DueDays == 0 {
		cfg.Invoice.DueDays = 14
	}
	if cfg.Invoice.VatRate == 0 {
		cfg.Invoice.VatRate = 25
	}
}

// ProvideVault returns a Vault client when VAULT_ADDR is set, nil otherwise.
// LoadConfig treats the client as optional.
func ProvideVault() *vault.Client {
	addr, ok := os.LookupEnv("VAULT_ADDR")
	if !ok || addr == "" {
		return nil
	}

	client, err := vault.New(
		vault.WithAddress(addr),
		vault.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		zap.L().Error("failed to create vault client", zap.Error(err))
		return nil
	}

	if token, ok := os.LookupEnv("VAULT_TOKEN"); ok && token != "" {
		if err := client.SetToken(token); err != nil {
			zap.L().Error("failed to set vault token", zap.Error(err))
			return nil
		}
	}

	return client
}
