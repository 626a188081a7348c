package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/auth"
	"github.com/Paladins-Inn/delphi-council/internal/config"
	"github.com/Paladins-Inn/delphi-council/internal/database"
	"github.com/Paladins-Inn/delphi-council/internal/i18n"
	"github.com/Paladins-Inn/delphi-council/internal/jobs"
	"github.com/Paladins-Inn/delphi-council/internal/logging"
	"github.com/Paladins-Inn/delphi-council/internal/mail"
	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/notify"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/server"
	"github.com/Paladins-Inn/delphi-council/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "delphi-council",
		Short: "Delphi Council Information System",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	})

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "Origins allowed to call the API (empty allows all)")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session lifetime in minutes")
	cmd.PersistentFlags().String("base-url", defaults.GetString("app.base_url"), "Public URL used in mails")
	cmd.PersistentFlags().String("default-locale", defaults.GetString("app.default_locale"), "Language used when nothing else matches")
	cmd.PersistentFlags().String("sendgrid-api-key", "", "SendGrid API key; mails are logged when empty")
	cmd.PersistentFlags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint; tracing is off when empty")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "app.base_url", "base-url")
	bindFlag(cmd, "app.default_locale", "default-locale")
	bindFlag(cmd, "mail.sendgrid_api_key", "sendgrid-api-key")
	bindFlag(cmd, "telemetry.otlp_endpoint", "otlp-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("delphi-council")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func openDatabase(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(database.Config{
		Driver:   appConfig.DatabaseDriver,
		DSN:      appConfig.DatabaseDSN,
		LogLevel: appConfig.LogLevel,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

func runMigrations() error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	_, closeDB, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	closeDB()
	logger.Info("database schema is up to date", zap.String("driver", appConfig.DatabaseDriver))
	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	shutdownTracing, err := telemetry.Setup(ctx, appConfig.ApplicationName(), appConfig.Version.Application, appConfig.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", zap.Error(err))
		}
	}()

	db, closeDB, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	translator, err := i18n.New(appConfig.DefaultLocale)
	if err != nil {
		return err
	}

	mailer := mail.NewSender(mail.Config{
		FromName:       appConfig.Mail.FromName,
		FromAddress:    appConfig.Mail.FromAddress,
		SendGridAPIKey: appConfig.Mail.SendGridAPIKey,
	}, logger)

	personService, err := persons.NewService(persons.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		Logger:     logger,
		Mailer:     mailer,
		Translator: translator,
		BaseURL:    appConfig.BaseURL,
		TokenTTL:   appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}
	missionService, err := missions.NewService(missions.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	operativeService, err := operatives.NewService(operatives.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	reportService, err := reports.NewService(reports.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		TokenTTL:      appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	scheduler, err := jobs.NewScheduler(jobs.Config{
		Purger:   personService,
		Schedule: appConfig.CleanupSchedule,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:          sessionValidator,
		Issuer:            tokenIssuer,
		Persons:           personService,
		Missions:          missionService,
		Operatives:        operativeService,
		Reports:           reportService,
		Translator:        translator,
		Notifier:          notify.NewDispatcher(),
		Logger:            logger,
		Version:           appConfig.Version,
		PageSize:          appConfig.PageSize,
		SecureCookies:     appConfig.SecureCookies,
		AllowedOrigins:    appConfig.AllowedOrigins,
		HeartbeatInterval: appConfig.HeartbeatInterval,
	})
	if err != nil {
		return err
	}

	httpServer, cancelRequests := newHTTPServer(appConfig.HTTPAddress, handler)
	defer cancelRequests()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("version", appConfig.Version.Application))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server stopping")
		cancelRequests()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newHTTPServer binds every request context to a base context. Cancelling it
// ends long-lived event streams so a graceful shutdown does not wait for them.
func newHTTPServer(address string, handler http.Handler) (*http.Server, context.CancelFunc) {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}, cancel
}
