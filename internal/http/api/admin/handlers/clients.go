package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// temporaryPasswordLength is the size of the generated first-login password.
const temporaryPasswordLength = 12

// ClientHandler manages gym members.
type ClientHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	notifier notify.Notifier
}

// NewClientHandler constructs a ClientHandler. The notifier delivers welcome emails and may be nil.
func NewClientHandler(db *gorm.DB, jwtCfg config.JWTConfig, notifier notify.Notifier) *ClientHandler {
	return &ClientHandler{db: db, jwtCfg: jwtCfg, notifier: notifier}
}

// createClientRequest captures the payload for registering a member.
type createClientRequest struct {
	FirstName string `json:"first_name" binding:"required"`  // Given name.
	LastName  string `json:"last_name" binding:"required"`   // Family name.
	Email     string `json:"email" binding:"required,email"` // Email address.
	Phone     string `json:"phone" binding:"required"`       // Phone number.
	Password  string `json:"password"`                       // Optional; generated when empty.
}

// Create registers a client without a subscription. When no password is given a temporary
// one is generated and mailed to the client.
func (h *ClientHandler) Create(c *gin.Context) {
	var body createClientRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	firstName := strings.TrimSpace(body.FirstName)
	lastName := strings.TrimSpace(body.LastName)
	if firstName == "" || lastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_name and last_name are required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	phone, errPhone := billing.NormalizePhone(body.Phone)
	if errPhone != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone"})
		return
	}

	password := body.Password
	generated := password == ""
	if generated {
		temp, errRandom := security.GenerateRandomString(temporaryPasswordLength)
		if errRandom != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate password failed"})
			return
		}
		password = temp
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		if errors.Is(errHash, security.ErrPasswordTooShort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errHash.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	client := models.Client{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phone,
		Password:  hash,
		Status:    models.ClientStatusInactive,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&client).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email or phone already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create client failed"})
		return
	}
	if generated && h.notifier != nil {
		message := fmt.Sprintf(
			"Dear %s,\n\nWelcome to FitFlow. Your temporary password is: %s\nPlease change it after your first login.",
			client.FullName(),
			password,
		)
		if !h.notifier.Notify(c.Request.Context(), client.Email, "Welcome to FitFlow", message) {
			log.WithField("client_id", client.ID).Warn("clients: welcome email not delivered")
		}
	}
	c.JSON(http.StatusCreated, formatClient(&client))
}

// List returns clients matching search and status, ordered by first name.
func (h *ClientHandler) List(c *gin.Context) {
	var (
		searchQ = strings.TrimSpace(c.Query("search"))
		statusQ = strings.TrimSpace(c.Query("status"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Client{}).Preload("Plan")
	if searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "first_name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "last_name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "phone"),
			pattern, pattern, pattern, pattern,
		)
	}
	if statusQ != "" {
		status, errStatus := models.ParseClientStatus(statusQ)
		if errStatus != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Active or Inactive"})
			return
		}
		q = q.Where("status = ?", status)
	}

	var rows []models.Client
	if errFind := q.Order("first_name ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list clients failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatClient(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"clients": out})
}

// Get returns a client by ID.
func (h *ClientHandler) Get(c *gin.Context) {
	client, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatClient(&client))
}

// updateClientRequest captures optional contact updates.
type updateClientRequest struct {
	FirstName *string `json:"first_name"`                      // Optional given name.
	LastName  *string `json:"last_name"`                       // Optional family name.
	Email     *string `json:"email" binding:"omitempty,email"` // Optional email.
	Phone     *string `json:"phone"`                           // Optional phone.
	Password  *string `json:"password"`                        // Optional new password.
}

// Update changes a client's contact details or password. Subscription fields only move through payments.
func (h *ClientHandler) Update(c *gin.Context) {
	client, ok := h.load(c)
	if !ok {
		return
	}
	var body updateClientRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}

	updates := map[string]any{}
	if body.FirstName != nil {
		if v := strings.TrimSpace(*body.FirstName); v != "" {
			updates["first_name"] = v
		}
	}
	if body.LastName != nil {
		if v := strings.TrimSpace(*body.LastName); v != "" {
			updates["last_name"] = v
		}
	}
	if body.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*body.Email))
	}
	if body.Phone != nil {
		phone, errPhone := billing.NormalizePhone(*body.Phone)
		if errPhone != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone"})
			return
		}
		updates["phone"] = phone
	}
	if body.Password != nil {
		hash, errHash := security.HashPassword(*body.Password)
		if errHash != nil {
			if errors.Is(errHash, security.ErrPasswordTooShort) {
				c.JSON(http.StatusBadRequest, gin.H{"error": errHash.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, formatClient(&client))
		return
	}

	ctx := c.Request.Context()
	if errUpdate := h.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", client.ID).Updates(updates).Error; errUpdate != nil {
		if dbutil.IsUniqueViolation(errUpdate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email or phone already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update client failed"})
		return
	}
	if errReload := h.db.WithContext(ctx).Preload("Plan").First(&client, client.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query client failed"})
		return
	}
	c.JSON(http.StatusOK, formatClient(&client))
}

// IssueToken signs a client bearer token for the self-service routes.
func (h *ClientHandler) IssueToken(c *gin.Context) {
	client, ok := h.load(c)
	if !ok {
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
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int64(ttl.Seconds())})
}

func (h *ClientHandler) load(c *gin.Context) (models.Client, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return models.Client{}, false
	}
	var client models.Client
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Plan").First(&client, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return models.Client{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return models.Client{}, false
	}
	return client, true
}
