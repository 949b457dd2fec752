package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v2"
	"github.com/gisquick/accounts-server/internal/admin"
	"github.com/gisquick/accounts-server/internal/application"
	"github.com/gisquick/accounts-server/internal/infrastructure/cache"
	"github.com/gisquick/accounts-server/internal/infrastructure/email"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres/migrations"
	"github.com/gisquick/accounts-server/internal/infrastructure/security"
	"github.com/gisquick/accounts-server/internal/server"
	"github.com/gisquick/accounts-server/internal/server/auth"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func Serve() error {
	cfg := struct {
		Accounts struct {
			Debug               bool `conf:"default:false"`
			SignupAPI           bool `conf:"default:true"`
			SendActivationEmail bool `conf:"default:false"`
			AutoMigrate         bool `conf:"default:false"`
			Metrics             bool `conf:"default:false"`
			AllowedOrigins      string
		}
		Auth struct {
			SecretKey            string        `conf:"default:secret-key,mask"`
			AccessTokenLifetime  time.Duration `conf:"default:5m"`
			RefreshTokenLifetime time.Duration `conf:"default:24h"`
			RotateRefreshTokens  bool          `conf:"default:false"`
			EmailTokenExpiration time.Duration `conf:"default:72h"`
			UserCacheTTL         time.Duration `conf:"default:30s"`
		}
		Web struct {
			ShutdownTimeout time.Duration `conf:"default:20s"`
			SiteURL         string        `conf:"default:http://localhost"`
			APIHost         string        `conf:"default:0.0.0.0:3000"`
		}
		Postgres PostgresConfig
		Redis    struct {
			Addr     string `conf:"default:redis:6379"` // "/var/run/redis/redis.sock"
			Network  string // "unix"
			Password string `conf:"mask"`
			DB       int    `conf:"default:0"`
		}
		Email struct {
			Host                   string
			Port                   int    `conf:"default:465"`
			Encryption             string `conf:"default:SSL,help: Options [None|SSL|TLS|STARTTLS]"`
			Username               string
			Password               string `conf:"mask"`
			Sender                 string
			Insecure               bool
			ActivationSubject      string `conf:"default:Account Activation"`
			ConfirmationSubject    string `conf:"default:Account Activated"`
			PasswordResetSubject   string `conf:"default:Password Reset"`
			PasswordChangedSubject string `conf:"default:Password Changed"`
		}
	}{}

	if ok, err := parseConfig(&cfg); !ok {
		return err
	}
	logLevel := zap.InfoLevel
	if cfg.Accounts.Debug {
		logLevel = zap.DebugLevel
	}
	log, err := createLogger(logLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	if _, err := email.ParseEncryption(cfg.Email.Encryption); err != nil {
		return err
	}

	// Database
	dbConn, err := postgres.OpenDB(cfg.Postgres.DBConfig())
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping database support", "host", cfg.Postgres.Host)
		dbConn.Close()
	}()
	if cfg.Accounts.AutoMigrate {
		if err := migrations.Up(dbConn); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	// for unix socket, use Network: "unix" and Addr: "/var/run/redis/redis.sock"
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Network:  cfg.Redis.Network,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var emailSender application.EmailService
	if cfg.Email.Host != "" {
		es := &email.SmtpEmailService{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			Encryption: cfg.Email.Encryption,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			Insecure:   cfg.Email.Insecure,
		}
		emailSender = email.NewAccountsEmailSender(es, cfg.Email.Sender, cfg.Web.SiteURL, email.Subjects{
			Activation:      cfg.Email.ActivationSubject,
			Confirmation:    cfg.Email.ConfirmationSubject,
			PasswordReset:   cfg.Email.PasswordResetSubject,
			PasswordChanged: cfg.Email.PasswordChangedSubject,
		})
	} else if cfg.Accounts.SendActivationEmail {
		log.Warnw("email service is not configured, account activation is disabled")
	}

	// Services
	usersRepo := cache.NewUsersRepository(postgres.NewUsersRepository(dbConn), cfg.Auth.UserCacheTTL)
	usersRepo.Start()
	defer usersRepo.Stop()

	tokenGenerator := security.NewTokenGenerator(cfg.Auth.SecretKey, "accounts", cfg.Auth.EmailTokenExpiration)
	accountsService := application.NewAccountsService(emailSender, usersRepo, tokenGenerator, cfg.Accounts.SendActivationEmail)

	jwtManager := security.NewJWTManager(cfg.Auth.SecretKey, cfg.Auth.AccessTokenLifetime, cfg.Auth.RefreshTokenLifetime)
	blacklist := auth.NewRedisTokenBlacklist(rdb)
	authServ := auth.NewAuthService(log, usersRepo, jwtManager, blacklist, cfg.Auth.RotateRefreshTokens)

	if err := admin.RegisterUserAdmin(admin.DefaultSite); err != nil {
		return fmt.Errorf("registering user admin: %w", err)
	}

	var origins []string
	for _, o := range strings.Split(cfg.Accounts.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	serverConf := server.Config{
		Debug:          cfg.Accounts.Debug,
		SiteURL:        cfg.Web.SiteURL,
		Metrics:        cfg.Accounts.Metrics,
		AllowedOrigins: origins,
		SignupAPI:      cfg.Accounts.SignupAPI,
	}
	s := server.NewServer(log, serverConf, authServ, accountsService, admin.DefaultSite)

	// Start server
	go func() {
		if err := s.ListenAndServe(cfg.Web.APIHost); err != nil && err != http.ErrServerClosed {
			log.Fatalf("shutting down the server: %v", err)
		}
	}()
	log.Infow("startup", "status", "api router started", "host", cfg.Web.APIHost)

	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("Received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Errorw("graceful shutdown", zap.Error(err))
	}
	log.Sync()
	return nil
}
