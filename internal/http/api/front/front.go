// Package front registers the public and client-facing routes.
package front

import (
	"net/http"
	"strings"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	"github.com/fitflow/billing/internal/http/api/front/handlers"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the plan catalog, the provider callback and the client routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *billing.Service) {
	if r == nil || db == nil || svc == nil {
		return
	}

	planHandler := handlers.NewPlanFrontHandler(svc.Catalog())
	r.GET("/v0/plans", planHandler.List)

	authHandler := handlers.NewAuthFrontHandler(db, jwtCfg)
	r.POST("/v0/login", authHandler.Login)

	callbackHandler := handlers.NewCallbackHandler(svc)
	r.POST("/v0/mpesa/callback", callbackHandler.Handle)

	authed := r.Group("/v0")
	authed.Use(clientAuthMiddleware(db, jwtCfg))

	paymentHandler := handlers.NewPaymentFrontHandler(db, svc)
	authed.POST("/payments/mpesa", paymentHandler.Initiate)
	authed.GET("/payments", paymentHandler.List)

	dashboardHandler := handlers.NewDashboardFrontHandler(db)
	authed.GET("/dashboard", dashboardHandler.Get)
}

// clientAuthMiddleware validates client JWTs and loads the client ID into the context.
func clientAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseClientToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		clientID, errSubject := claims.SubjectID()
		if errSubject != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var client models.Client
		if errFind := db.WithContext(c.Request.Context()).Select("id").Take(&client, clientID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client not found"})
			return
		}

		c.Set(handlers.ClientIDKey, client.ID)
		c.Next()
	}
}
