// Package admin registers the staff-facing routes.
package admin

import (
	"net/http"
	"strings"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	handlers "github.com/fitflow/billing/internal/http/api/admin/handlers"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/fitflow/billing/internal/report"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *billing.Service, agg *report.Aggregator, notifier notify.Notifier) {
	if r == nil || db == nil || svc == nil || agg == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	paymentHandler := handlers.NewPaymentHandler(svc)
	authed.POST("/payments/cash", paymentHandler.RecordCash)
	authed.POST("/payments/mpesa", paymentHandler.Initiate)
	authed.GET("/payments", paymentHandler.List)

	clientHandler := handlers.NewClientHandler(db, jwtCfg, notifier)
	authed.POST("/clients", clientHandler.Create)
	authed.GET("/clients", clientHandler.List)
	authed.GET("/clients/:id", clientHandler.Get)
	authed.PATCH("/clients/:id", clientHandler.Update)
	authed.POST("/clients/:id/token", clientHandler.IssueToken)

	expenseHandler := handlers.NewExpenseHandler(db)
	authed.POST("/expenses", expenseHandler.Create)
	authed.GET("/expenses", expenseHandler.List)

	reportHandler := handlers.NewReportHandler(agg)
	authed.GET("/reports/monthly", reportHandler.Monthly)
	authed.GET("/reports/monthly/export", reportHandler.Export)
	authed.GET("/dashboard", reportHandler.Dashboard)

	adminHandler := handlers.NewAdminHandler(db)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins", adminHandler.List)
	authed.POST("/admins/:id/enable", adminHandler.Enable)
	authed.POST("/admins/:id/disable", adminHandler.Disable)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		adminID, errSubject := claims.SubjectID()
		if errSubject != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set(handlers.AdminIDKey, admin.ID)
		c.Set(handlers.AdminEmailKey, admin.Email)
		c.Next()
	}
}
