package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/batch-weighing/internal/infra/blob/s3"
	"github.com/Spok95/batch-weighing/internal/validation"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Storage struct {
		Driver     string
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"storage"`

	Postgres struct {
		DSN         string
		AutoMigrate bool `mapstructure:"auto_migrate"`
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Validation validation.Rules `mapstructure:"validation"`

	Catalog struct {
		PageSize int `mapstructure:"page_size"`
	} `mapstructure:"catalog"`

	Backup struct {
		Enabled bool
		Driver  string
		Dir     string
		Keep    int
		S3      s3.Config `mapstructure:"s3"`
	} `mapstructure:"backup"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		Bot         bool
		PollTimeout int `mapstructure:"poll_timeout"`
	} `mapstructure:"telegram"`

	Listeners struct {
		UDPAddr  string   `mapstructure:"udp_addr"`
		TCPAddrs []string `mapstructure:"tcp_addrs"`
	} `mapstructure:"listeners"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("http.addr", ":3001")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.sqlite_path", "data/weighd.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.auto_migrate", true)
	v.SetDefault("metrics.enabled", true)

	r := validation.DefaultRules()
	v.SetDefault("validation.product_no.min", r.ProductNo.Min)
	v.SetDefault("validation.product_no.max", r.ProductNo.Max)
	v.SetDefault("validation.material_no.min", r.MaterialNo.Min)
	v.SetDefault("validation.material_no.max", r.MaterialNo.Max)
	v.SetDefault("validation.process_no.min", r.ProcessNo.Min)
	v.SetDefault("validation.process_no.max", r.ProcessNo.Max)
	v.SetDefault("validation.batch_no.min", r.BatchNo.Min)
	v.SetDefault("validation.batch_no.max", r.BatchNo.Max)

	v.SetDefault("catalog.page_size", 20)

	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.driver", "fs")
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 8)
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "")
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.access_key_id", "")
	v.SetDefault("backup.s3.secret_access_key", "")
	v.SetDefault("backup.s3.path_style", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.bot", false)
	v.SetDefault("telegram.poll_timeout", 60)

	v.SetDefault("listeners.udp_addr", "")
	v.SetDefault("listeners.tcp_addrs", []string{})
}

// Load reads path, if given, on top of the defaults. Variables from a .env
// file in the working directory are loaded first and APP_* variables
// override file values (APP_POSTGRES_DSN sets postgres.dsn).
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("config: postgres.dsn is required for the postgres storage driver")
		}
	default:
		return errors.New("config: storage.driver must be memory, sqlite or postgres")
	}
	if c.Backup.Enabled && c.Backup.Driver == "s3" && c.Backup.S3.Bucket == "" {
		return errors.New("config: backup.s3.bucket is required for the s3 backup driver")
	}
	if c.Telegram.Bot && c.Telegram.Token == "" {
		return errors.New("config: telegram.token is required when telegram.bot is on")
	}
	return nil
}

// Location resolves app.timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.App.Timezone == "" || c.App.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
