package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	"github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/http/api/middleware"
	"github.com/fitflow/billing/internal/notify"
	"github.com/fitflow/billing/internal/report"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestNewEngineRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn, err := db.Open(db.BuildSQLiteDSN(filepath.Join(t.TempDir(), "engine.db")))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	rec := &notify.Recorder{}
	jwtCfg := config.JWTConfig{Secret: "engine-secret", Expiry: time.Hour}
	engine := NewEngine(conn, jwtCfg, billing.NewService(conn, billing.Options{Notifier: rec}), report.NewAggregator(conn, rec), rec)

	cases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/v0/plans", http.StatusOK},
		{"/v0/admin/dashboard", http.StatusUnauthorized},
		{"/v0/dashboard", http.StatusUnauthorized},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("GET %s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
		if w.Header().Get(middleware.RequestIDHeader) == "" {
			t.Fatalf("GET %s: missing request id header", tc.path)
		}
	}

	admin, errAdmin := EnsureAdminWithConn(t.Context(), conn, "Owner", "owner@example.com")
	if errAdmin != nil {
		t.Fatalf("ensure admin: %v", errAdmin)
	}
	token, errToken := security.IssueToken(jwtCfg.Secret, security.RoleAdmin, admin.ID, time.Hour, time.Now())
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin dashboard, got %d: %s", w.Code, w.Body.String())
	}
}

func TestNewNotifier(t *testing.T) {
	if _, ok := NewNotifier(config.MailConfig{}).(notify.LogNotifier); !ok {
		t.Fatalf("expected log notifier without credentials")
	}
	smtpCfg := config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}
	if _, ok := NewNotifier(smtpCfg).(*notify.SMTPNotifier); !ok {
		t.Fatalf("expected smtp notifier with credentials")
	}
	sgCfg := config.MailConfig{Provider: config.MailProviderSendGrid, From: "desk@example.com", SendGridAPIKey: "sg-key"}
	if _, ok := NewNotifier(sgCfg).(*notify.SendGridNotifier); !ok {
		t.Fatalf("expected sendgrid notifier with api key")
	}
	sgCfg.SendGridAPIKey = ""
	if _, ok := NewNotifier(sgCfg).(notify.LogNotifier); !ok {
		t.Fatalf("expected log notifier without sendgrid api key")
	}
}

func TestSetupLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	if err := SetupLogging(config.LoggingConfig{Level: "debug", JSON: true}); err != nil {
		t.Fatalf("setup logging: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if err := SetupLogging(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestBootstrapAdmin(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "bootstrap.db")
	content := "database-dsn: \"" + db.BuildSQLiteDSN(dbPath) + "\"\njwt:\n  secret: bootstrap-secret\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvJWTSecret, "")

	token, err := BootstrapAdmin(t.Context(), config.AppConfig{ConfigPath: configPath}, "Owner", "owner@example.com", "bootstrap-pass")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	claims, errParse := security.ParseAdminToken("bootstrap-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if id, _ := claims.SubjectID(); id != 1 {
		t.Fatalf("expected first admin id 1, got %d", id)
	}

	if _, err := BootstrapAdmin(t.Context(), config.AppConfig{ConfigPath: configPath}, "Owner", "owner@example.com", "abc"); !errors.Is(err, security.ErrPasswordTooShort) {
		t.Fatalf("expected short password error, got %v", err)
	}
}
