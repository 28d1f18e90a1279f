package main

import (
	"errors"
	"fmt"
	"strings"

	redis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/prashanthpai/smartcache"
	"github.com/prashanthpai/smartcache/config"
)

// Settings is the tool's own configuration, merged from flags, SMARTCACHE_*
// environment variables and an optional config file.
type Settings struct {
	Redis     RedisSettings `mapstructure:"redis"`
	ConfigKey string        `mapstructure:"config_key"`
	KeyPrefix string        `mapstructure:"key_prefix"`

	// Document, when set, edits a local configuration document instead of
	// the one in redis.
	Document string `mapstructure:"document"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings Settings
	client   redis.UniversalClient
}

type documentStore interface {
	config.Source
	config.Writer
}

func (a *app) source() documentStore {
	if a.settings.Document != "" {
		return config.NewFileSource(a.settings.Document, zap.NewNop())
	}
	return config.NewRedisSource(a.client, a.settings.ConfigKey)
}

func (a *app) queryLog() *smartcache.RedisQueryLog {
	return smartcache.NewRedisQueryLog(a.client, a.settings.KeyPrefix)
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "smartcachectl",
		Short: "Manage smartcache rules and configuration",
		Long: `smartcachectl reads and edits the configuration document that smartcache
instances load from redis, and lists the queries they have seen. Every change
is published so running instances reload it immediately.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.client == nil {
				return nil
			}
			return a.client.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("redis-addr", "127.0.0.1:6379", "redis address")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.String("config-key", "smartcache:config", "redis key holding the configuration document")
	flags.String("key-prefix", "smartcache:", "key prefix used by the cache instances")
	flags.String("document", "", "edit this configuration file instead of the redis key")

	_ = a.v.BindPFlag("redis.addr", flags.Lookup("redis-addr"))
	_ = a.v.BindPFlag("redis.password", flags.Lookup("redis-password"))
	_ = a.v.BindPFlag("redis.db", flags.Lookup("redis-db"))
	_ = a.v.BindPFlag("config_key", flags.Lookup("config-key"))
	_ = a.v.BindPFlag("key_prefix", flags.Lookup("key-prefix"))
	_ = a.v.BindPFlag("document", flags.Lookup("document"))

	rootCmd.AddCommand(newConfigCmd(a), newRulesCmd(a), newQueriesCmd(a))
	return rootCmd
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	a.v.SetEnvPrefix("SMARTCACHE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading config file %s: %w", a.v.ConfigFileUsed(), err)
			}
		}
	}

	if err := a.v.Unmarshal(&a.settings); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if a.settings.ConfigKey == "" {
		return errors.New("config key must not be empty")
	}

	a.client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{a.settings.Redis.Addr},
		Password: a.settings.Redis.Password,
		DB:       a.settings.Redis.DB,
	})
	return nil
}
