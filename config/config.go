package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Admin AdminConfig `mapstructure:"admin"`
	Mail  MailConfig  `mapstructure:"mail"`
}

// JWTConfig holds the two symmetric signing contexts. Access tokens and
// password-reset tokens deliberately use different secrets so that a leak of
// one class never compromises the other.
type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	ResetSecretKey string        `mapstructure:"resetSecretKey"`
	Algorithm      string        `mapstructure:"algorithm"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	ResetTokenTTL  time.Duration `mapstructure:"resetTokenTTL"`
}

// AdminConfig carries the signup secret that gates privileged user creation
// and the bootstrap super-admin seeded at first start.
type AdminConfig struct {
	SignupToken string `mapstructure:"signupToken"`
	Email       string `mapstructure:"email"`
	FirstName   string `mapstructure:"firstName"`
	LastName    string `mapstructure:"lastName"`
	Password    string `mapstructure:"password"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
