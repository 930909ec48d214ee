package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Game   GameConfig   `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type GameConfig struct {
	// CatalogPath points at a JSON object catalog. Empty means the
	// built-in catalog.
	CatalogPath string `mapstructure:"catalog_path"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":4000")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("game.catalog_path", "")

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// A missing config file is fine, the defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
