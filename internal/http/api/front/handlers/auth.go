package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/config"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthFrontHandler issues client tokens for email and password credentials.
type AuthFrontHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthFrontHandler constructs an AuthFrontHandler.
func NewAuthFrontHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthFrontHandler {
	return &AuthFrontHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest captures login credentials.
type loginRequest struct {
	Email    string `json:"email"`    // Account email.
	Password string `json:"password"` // Plain password.
}

// Login verifies credentials and returns a client bearer token.
func (h *AuthFrontHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var client models.Client
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&client).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.CheckPassword(client.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ttl := h.jwtCfg.Expiry
	if ttl <= 0 {
		ttl = config.DefaultJWTExpiry
	}
	token, errIssue := security.IssueToken(h.jwtCfg.Secret, security.RoleClient, client.ID, ttl, time.Now().UTC())
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(ttl.Seconds()),
		"name":       client.FullName(),
	})
}
