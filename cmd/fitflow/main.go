package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fitflow/billing/internal/app"
	"github.com/fitflow/billing/internal/config"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags, loads config, and runs the requested command.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitflow", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 8080, "server port when the config and PORT leave it unset")
	migrateOnly := fs.Bool("migrate-only", false, "run database migrations and exit")
	adminEmail := fs.String("bootstrap-admin", "", "ensure an admin with this email exists, print its token and exit")
	adminName := fs.String("admin-name", "", "display name for -bootstrap-admin")
	adminPassword := fs.String("admin-password", "", "login password for -bootstrap-admin (or env ADMIN_PASSWORD)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}

	switch {
	case *migrateOnly:
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	case strings.TrimSpace(*adminEmail) != "":
		password := *adminPassword
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		token, errBootstrap := app.BootstrapAdmin(ctx, appCfg, *adminName, *adminEmail, password)
		if errBootstrap != nil {
			return errBootstrap
		}
		fmt.Println(token)
		return nil
	}

	return app.RunServer(ctx, appCfg, *port)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
