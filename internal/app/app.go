package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	"github.com/fitflow/billing/internal/db"
	internalhttp "github.com/fitflow/billing/internal/http/api/admin"
	"github.com/fitflow/billing/internal/http/api/front"
	"github.com/fitflow/billing/internal/http/api/middleware"
	"github.com/fitflow/billing/internal/mpesa"
	"github.com/fitflow/billing/internal/notify"
	"github.com/fitflow/billing/internal/ratelimit"
	"github.com/fitflow/billing/internal/report"
	"github.com/fitflow/billing/internal/scheduler"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrMissingJWTSecret indicates the API cannot verify bearer tokens.
var ErrMissingJWTSecret = errors.New("missing jwt secret (set `jwt.secret` in config file or JWT_SECRET)")

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := openDatabase(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the billing API, the scheduled jobs and their shared dependencies, and
// blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	logCfg, errLog := config.LoadLoggingConfig(configPath)
	if errLog != nil {
		return errLog
	}
	if errSetup := SetupLogging(logCfg); errSetup != nil {
		return errSetup
	}

	serverCfg, errServer := config.LoadServerConfig(configPath, defaultPort)
	if errServer != nil {
		return errServer
	}
	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return ErrMissingJWTSecret
	}
	mpesaCfg, errMpesa := config.LoadMpesaConfig(configPath)
	if errMpesa != nil {
		return errMpesa
	}
	mailCfg, errMail := config.LoadMailConfig(configPath)
	if errMail != nil {
		return errMail
	}
	schedCfg, errSched := config.LoadSchedulerConfig(configPath)
	if errSched != nil {
		return errSched
	}
	rlCfg, errRL := config.LoadRateLimitConfig(configPath)
	if errRL != nil {
		return errRL
	}

	conn, err := openDatabase(configPath)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if initialized, errInit := HasAdminInitialized(conn); errInit != nil {
		return errInit
	} else if !initialized {
		log.Warn("no admin accounts yet; run with -bootstrap-admin to create one")
	}

	notifier := NewNotifier(mailCfg)
	limiter := ratelimit.NewManager(rlCfg, nil, nil)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter failed")
		}
	}()

	opts := billing.Options{
		Notifier:       notifier,
		Limiter:        limiter,
		GatewayTimeout: mpesaCfg.Timeout,
	}
	if mpesaCfg.Enabled() {
		opts.Gateway = mpesa.NewClient(mpesaCfg)
	} else {
		log.Warn("mpesa credentials not configured; mobile money initiation is disabled")
	}
	svc := billing.NewService(conn, opts)
	agg := report.NewAggregator(conn, notifier)

	sched, errNew := scheduler.New(schedCfg, agg)
	if errNew != nil {
		return errNew
	}
	sched.Start(ctx)
	defer func() { <-sched.Stop().Done() }()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(serverCfg.Port),
		Handler:           NewEngine(conn, jwtConfig, svc, agg, notifier),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting fitflow billing on %s (config=%s)", srv.Addr, configPath)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errCh <- errListen
		}
		close(errCh)
	}()

	select {
	case errListen := <-errCh:
		return errListen
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down http server")
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown http server: %w", errShutdown)
	}
	return nil
}

// NewEngine builds the gin engine with every API route registered.
func NewEngine(conn *gorm.DB, jwtConfig config.JWTConfig, svc *billing.Service, agg *report.Aggregator, notifier notify.Notifier) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())
	internalhttp.RegisterAdminRoutes(engine, conn, jwtConfig, svc, agg, notifier)
	front.RegisterFrontRoutes(engine, conn, jwtConfig, svc)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// NewNotifier returns a notifier for the configured mail provider, or a log-only one when its
// credentials are missing.
func NewNotifier(cfg config.MailConfig) notify.Notifier {
	if !cfg.Enabled() {
		log.WithField("provider", cfg.Provider).Warn("mail credentials not configured; notifications are logged only")
		return notify.LogNotifier{}
	}
	if cfg.Provider == config.MailProviderSendGrid {
		return notify.NewSendGridNotifier(notify.SendGridConfig{
			APIKey:     cfg.SendGridAPIKey,
			BaseURL:    cfg.SendGridBaseURL,
			Sender:     cfg.From,
			SenderName: cfg.FromName,
		})
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// SetupLogging applies the configured level and format to the global logger.
func SetupLogging(cfg config.LoggingConfig) error {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, errLevel)
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

func openDatabase(configPath string) (*gorm.DB, error) {
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return nil, err
	}
	return db.Open(dsn)
}

func closeDatabase(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database failed")
	}
}
