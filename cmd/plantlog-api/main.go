package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/simfr24/plantlog/internal/auth"
	"github.com/simfr24/plantlog/internal/config"
	"github.com/simfr24/plantlog/internal/database"
	"github.com/simfr24/plantlog/internal/importer"
	"github.com/simfr24/plantlog/internal/logging"
	"github.com/simfr24/plantlog/internal/metrics"
	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"github.com/simfr24/plantlog/internal/server"
	"github.com/simfr24/plantlog/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile      string
	importUserID uint
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plantlog-api",
		Short: "Plantlog growing logbook service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a legacy JSON export into a user's logbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], importUserID)
		},
	}
	importCmd.Flags().UintVar(&importUserID, "user", 0, "Owner user ID for the imported plants")
	rootCmd.AddCommand(importCmd)

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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-hours", defaults.GetInt("auth.token_ttl_hours"), "Session token TTL in hours")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.token_ttl_hours", "token-ttl-hours")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, logger, db, reg, err := openStack()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionIssuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "plantlog-auth",
		Audience:      "plantlog-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	plantService, err := plants.NewService(plants.ServiceConfig{
		Database: db,
		Registry: reg,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		PlantService: plantService,
		UserService:  userService,
		Sessions:     sessionIssuer,
		Registry:     reg,
		Metrics:      metrics.New(prometheus.DefaultRegisterer),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runImport(ctx context.Context, path string, ownerID uint) error {
	if ownerID == 0 {
		return errors.New("--user is required")
	}

	_, logger, db, reg, err := openStack()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	legacyImporter, err := importer.New(db, reg, logger)
	if err != nil {
		return err
	}
	result, err := legacyImporter.ImportFile(ctx, path, ownerID)
	if err != nil {
		return err
	}
	logger.Info("import finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return nil
}

func openStack() (config.AppConfig, *zap.Logger, *gorm.DB, *registry.Registry, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}
	reg, err := registry.New(db)
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}
	return appConfig, logger, db, reg, nil
}
