package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func parseURLID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("urlId"), 10, 64)
	if err != nil || id == 0 {
		return 0, services.NewValidationError("Invalid URL id", err)
	}
	return uint(id), nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h *Handler) URLAnalytics(c *gin.Context) {
	h.linkAnalytics(c, func(p services.Principal, id uint) (*services.LinkAnalytics, error) {
		return h.analyticsService.LinkAnalytics(c.Request.Context(), p, id)
	})
}

func (h *Handler) URLAnalyticsByTimeRange(c *gin.Context) {
	startRaw, endRaw := c.Query("startDate"), c.Query("endDate")
	if startRaw == "" || endRaw == "" {
		c.Error(services.NewValidationError("startDate and endDate are required", nil))
		return
	}
	start, err := parseDate(startRaw, false)
	if err != nil {
		c.Error(services.NewValidationError("startDate must be a date or RFC 3339 timestamp", err))
		return
	}
	end, err := parseDate(endRaw, true)
	if err != nil {
		c.Error(services.NewValidationError("endDate must be a date or RFC 3339 timestamp", err))
		return
	}

	h.linkAnalytics(c, func(p services.Principal, id uint) (*services.LinkAnalytics, error) {
		return h.analyticsService.TimeRange(c.Request.Context(), p, id, start, end)
	})
}

func (h *Handler) URLRealtimeAnalytics(c *gin.Context) {
	h.linkAnalytics(c, func(p services.Principal, id uint) (*services.LinkAnalytics, error) {
		return h.analyticsService.Realtime(c.Request.Context(), p, id)
	})
}

func (h *Handler) linkAnalytics(c *gin.Context, load func(services.Principal, uint) (*services.LinkAnalytics, error)) {
	id, err := parseURLID(c)
	if err != nil {
		c.Error(err)
		return
	}

	principal, _ := principalFrom(c)
	result, err := load(principal, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

var exportHeader = []string{"eventId", "clickedAt", "ipAddress", "device", "browser", "operatingSystem", "referrer", "location"}

// ExportURLAnalytics streams the raw clicks of a link as JSON or CSV.
func (h *Handler) ExportURLAnalytics(c *gin.Context) {
	id, err := parseURLID(c)
	if err != nil {
		c.Error(err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "csv" {
		c.Error(services.NewValidationError("Format must be json or csv", nil))
		return
	}

	principal, _ := principalFrom(c)
	result, err := h.analyticsService.LinkAnalytics(c.Request.Context(), principal, id)
	if err != nil {
		c.Error(err)
		return
	}

	filename := fmt.Sprintf("analytics-%d.%s", id, format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		body, err := json.Marshal(result.Details)
		if err != nil {
			c.Error(err)
			return
		}
		c.Data(http.StatusOK, "application/json", body)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, click := range result.Details {
		_ = w.Write([]string{
			click.EventID,
			click.ClickedAt.UTC().Format(time.RFC3339),
			click.IPAddress,
			click.Device,
			click.Browser,
			click.OperatingSystem,
			click.Referrer,
			click.Location,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("Failed to write CSV export", "url_id", id, "error", err)
	}
}

func (h *Handler) AnalyticsSummary(c *gin.Context) {
	principal, _ := principalFrom(c)
	summary, err := h.analyticsService.UserSummary(c.Request.Context(), principal)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

func (h *Handler) TopURLs(c *gin.Context) {
	limit := services.DefaultTopURLs
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.Error(services.NewValidationError("limit must be a positive number", err))
			return
		}
		limit = n
	}

	principal, _ := principalFrom(c)
	links, err := h.analyticsService.TopURLs(c.Request.Context(), principal, limit)
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
