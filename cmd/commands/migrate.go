package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/conf/v2"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres/migrations"
	"github.com/golang-migrate/migrate/v4"
)

func runMigrateCommand() error {
	cfg := struct {
		Postgres PostgresConfig
		Args     conf.Args
	}{}
	if ok, err := parseConfig(&cfg); !ok {
		return err
	}
	dbConfig := cfg.Postgres.DBConfig()
	dbConfig.MaxIdleConns = 1
	dbConfig.MaxOpenConns = 1
	dbConn, err := postgres.OpenDB(dbConfig)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	m, err := migrations.New(dbConn)
	if err != nil {
		dbConn.Close()
		return err
	}
	// closes also database connection
	defer m.Close()

	subcmd := cfg.Args.Num(0)

	// up/down command with specified number of steps
	if len(cfg.Args) > 1 && (subcmd == "up" || subcmd == "down") {
		steps, err := strconv.Atoi(cfg.Args.Num(1))
		if err != nil {
			return fmt.Errorf("invalid steps parameter: %s", cfg.Args.Num(1))
		}
		if subcmd == "down" {
			steps = -steps
		}
		return m.Steps(steps)
	}

	switch subcmd {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "force":
		val, err := strconv.Atoi(cfg.Args.Num(1))
		if err != nil {
			return fmt.Errorf("invalid or missing version parameter: %s", cfg.Args.Num(1))
		}
		return m.Force(val)
	case "version":
		ver, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migration applied")
			return nil
		}
		if err == nil {
			if dirty {
				fmt.Printf("%d (dirty)\n", ver)
			} else {
				fmt.Println(ver)
			}
		}
		return err
	case "drop":
		return m.Drop()
	default:
		return fmt.Errorf("unknown or missing migrate command (up|down|force|version|drop)")
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		return nil
	}
	return err
}

func Migrate() error {
	return runMigrateCommand()
}
