package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler manages the staff accounts that receive reports.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// createAdminRequest captures the payload for a staff account.
type createAdminRequest struct {
	Name     string `json:"name" binding:"required"`        // Display name.
	Email    string `json:"email" binding:"required,email"` // Report recipient.
	Password string `json:"password"`                       // Optional login password.
}

// Create adds an active admin.
func (h *AdminHandler) Create(c *gin.Context) {
	var body createAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	admin := models.Admin{Name: name, Email: email, Active: true}
	if body.Password != "" {
		hash, errHash := security.HashPassword(body.Password)
		if errHash != nil {
			if errors.Is(errHash, security.ErrPasswordTooShort) {
				c.JSON(http.StatusBadRequest, gin.H{"error": errHash.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		admin.Password = hash
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&admin).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "name or email already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create admin failed"})
		return
	}
	c.JSON(http.StatusCreated, formatAdmin(&admin))
}

// List returns all admins.
func (h *AdminHandler) List(c *gin.Context) {
	var rows []models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list admins failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAdmin(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"admins": out})
}

// Enable reactivates an admin.
func (h *AdminHandler) Enable(c *gin.Context) { h.setActive(c, true) }

// Disable deactivates an admin; disabled admins cannot call the API or receive reports.
func (h *AdminHandler) Disable(c *gin.Context) { h.setActive(c, false) }

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if !active {
		if self, ok := c.Get(AdminIDKey); ok {
			if selfID, _ := self.(uint64); selfID == id {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable yourself"})
				return
			}
		}
	}

	ctx := c.Request.Context()
	res := h.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update admin failed"})
		return
	}
	if res.RowsAffected == 0 {
		var admin models.Admin
		if errFind := h.db.WithContext(ctx).First(&admin, id).Error; errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": active})
}

func formatAdmin(admin *models.Admin) gin.H {
	return gin.H{
		"id":         admin.ID,
		"name":       admin.Name,
		"email":      admin.Email,
		"active":     admin.Active,
		"created_at": admin.CreatedAt,
	}
}
