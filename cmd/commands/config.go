package commands

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/conf/v2"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type PostgresConfig struct {
	User               string `conf:"default:postgres"`
	Password           string `conf:"default:postgres,mask"`
	Host               string `conf:"default:postgres"`
	Name               string `conf:"default:postgres,env:POSTGRES_DB"`
	Port               int    `conf:"default:5432"`
	MaxIdleConns       int    `conf:"default:3"`
	MaxOpenConns       int    `conf:"default:3"`
	SSLMode            string `conf:"default:disable"`
	StatementCacheMode string `conf:"default:prepare"`
}

func (c PostgresConfig) DBConfig() postgres.Config {
	return postgres.Config{
		User:               c.User,
		Password:           c.Password,
		Host:               c.Host,
		Name:               c.Name,
		Port:               c.Port,
		MaxIdleConns:       c.MaxIdleConns,
		MaxOpenConns:       c.MaxOpenConns,
		SSLMode:            c.SSLMode,
		StatementCacheMode: c.StatementCacheMode,
	}
}

// parseConfig parses environment variables and command line flags into cfg.
// Returns false when only help was requested.
func parseConfig(cfg interface{}) (bool, error) {
	help, err := conf.Parse("", cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return false, nil
		}
		return false, fmt.Errorf("parsing config: %w", err)
	}
	return true, nil
}

func createLogger(level zapcore.Level) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.Level.SetLevel(level)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	return logger.Sugar(), nil
}
