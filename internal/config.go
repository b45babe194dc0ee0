package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type PgsqlKitConfig struct {
	AppName string `mapstructure:"app_name"`

	Connection struct {
		Host       string `mapstructure:"host"`
		Port       string `mapstructure:"port"`
		DBName     string `mapstructure:"dbname"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		SSLMode    string `mapstructure:"sslmode"`
		Service    string `mapstructure:"service"`
		KrbsrvName string `mapstructure:"krbsrvname"`
		Options    string `mapstructure:"options"`
		Encoding   string `mapstructure:"encoding"`
		LogSQL     bool   `mapstructure:"log_sql"`
	} `mapstructure:"connection"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_name", "pgsqlkit")
	v.SetDefault("connection.host", "localhost")
	v.SetDefault("connection.port", "5432")
	v.SetDefault("connection.dbname", "template1")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("PGSQLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env vars for keys viper already knows about.
	for key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadConfig reads the YAML file at path (optional when empty), applies
// PGSQLKIT_* environment overrides, then any flags in fs that were set.
// Flag names map to connection keys: --host → connection.host,
// --log-sql → connection.log_sql, --log-level → log.level.
func LoadConfig(path string, fs *pflag.FlagSet) (*PgsqlKitConfig, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := "connection." + strings.ReplaceAll(f.Name, "-", "_")
			if f.Name == "log-level" {
				key = "log.level"
			}
			if !configKeys[key] {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg PgsqlKitConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

var configKeys = map[string]bool{
	"connection.host": true, "connection.port": true, "connection.dbname": true,
	"connection.user": true, "connection.password": true, "connection.sslmode": true,
	"connection.service": true, "connection.krbsrvname": true, "connection.options": true,
	"connection.encoding": true, "connection.log_sql": true, "log.level": true,
}
