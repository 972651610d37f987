package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Executor Executor
	Session  Session
	RabbitMQ RabbitMQ
	LogLevel string
	AppEnv   string
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string `json:"-"`
	Name     string
}

type Executor struct {
	URL         string
	APIKey      string `json:"-"`
	APIHost     string
	LanguageID  int
	Timeout     time.Duration
	Concurrency int
}

type Session struct {
	AutosaveInterval time.Duration
}

type RabbitMQ struct {
	URL      string `json:"-"`
	Exchange string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EXECUTOR_URL", "https://judge0-ce.p.rapidapi.com")
	viper.SetDefault("EXECUTOR_LANGUAGE_ID", 63)
	viper.SetDefault("EXECUTOR_TIMEOUT_SECONDS", 10)
	viper.SetDefault("GRADING_CONCURRENCY", 1)
	viper.SetDefault("AUTOSAVE_INTERVAL_SECONDS", 30)
	viper.SetDefault("RABBITMQ_EXCHANGE", "exam.events")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("APP_ENV", "production")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Executor.URL = viper.GetString("EXECUTOR_URL")
	config.Executor.APIKey = viper.GetString("EXECUTOR_API_KEY")
	config.Executor.APIHost = viper.GetString("EXECUTOR_API_HOST")
	config.Executor.LanguageID = viper.GetInt("EXECUTOR_LANGUAGE_ID")
	config.Executor.Timeout = time.Duration(viper.GetInt("EXECUTOR_TIMEOUT_SECONDS")) * time.Second
	config.Executor.Concurrency = viper.GetInt("GRADING_CONCURRENCY")

	config.Session.AutosaveInterval = time.Duration(viper.GetInt("AUTOSAVE_INTERVAL_SECONDS")) * time.Second

	config.RabbitMQ.URL = viper.GetString("RABBITMQ_URL")
	config.RabbitMQ.Exchange = viper.GetString("RABBITMQ_EXCHANGE")

	config.LogLevel = viper.GetString("LOG_LEVEL")
	config.AppEnv = viper.GetString("APP_ENV")

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil

}
