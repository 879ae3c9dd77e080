package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
)

type CreateURLRequest struct {
	OriginalURL string     `json:"originalUrl" binding:"required"`
	CustomAlias string     `json:"customAlias" binding:"omitempty,shortalias"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type URLResponse struct {
	ID          uint       `json:"id,omitempty"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	ShortURL    string     `json:"shortUrl"`
	CustomAlias *string    `json:"customAlias,omitempty"`
	Clicks      int64      `json:"clicks"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (h *Handler) toURLResponse(c *gin.Context, link *models.URL) URLResponse {
	return URLResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    h.baseURL(c) + "/" + link.ShortCode,
		CustomAlias: link.CustomAlias,
		Clicks:      link.Clicks,
		IsActive:    link.IsActive,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}
}

// baseURL prefers the configured public URL and falls back to the request host.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.cfg.BaseURL != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// CreateURL handles the API request to shorten a URL
func (h *Handler) CreateURL(c *gin.Context) {
	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	principal, _ := principalFrom(c)
	link, err := h.shortenerService.CreateShortURL(c.Request.Context(), services.ShortenDTO{
		UserID:      principal.UserID,
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    h.toURLResponse(c, link),
	})
}

func (h *Handler) ListURLs(c *gin.Context) {
	principal, _ := principalFrom(c)
	links, err := h.shortenerService.ListLinks(c.Request.Context(), principal)
	if err != nil {
		c.Error(err)
		return
	}

	data := make([]URLResponse, 0, len(links))
	for i := range links {
		data = append(data, h.toURLResponse(c, &links[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) DeleteURL(c *gin.Context) {
	principal, _ := principalFrom(c)
	if err := h.shortenerService.DeleteLink(c.Request.Context(), principal, c.Param("shortCode"), c.ClientIP()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// URLQRCode renders a QR code of the short URL.
func (h *Handler) URLQRCode(c *gin.Context) {
	principal, _ := principalFrom(c)
	link, err := h.shortenerService.GetForPrincipal(c.Request.Context(), principal, c.Param("shortCode"))
	if err != nil {
		c.Error(err)
		return
	}

	size := 0
	if raw := c.Query("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil {
			c.Error(services.NewValidationError("Size must be a number", err))
			return
		}
	}

	img, err := h.qrService.Render(services.QROptions{
		Content: h.baseURL(c) + "/" + link.ShortCode,
		Format:  c.DefaultQuery("format", services.QRFormatPNG),
		Size:    size,
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
