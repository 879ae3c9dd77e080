package handlers

import (
	"net/http"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/metrics"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
)

// RedirectToURL resolves a short code and records the click. In async mode
// the click is queued and the redirect does not wait for the write.
func (h *Handler) RedirectToURL(c *gin.Context) {
	ctx := c.Request.Context()

	link, err := h.shortenerService.Resolve(ctx, c.Param("short_code"))
	if err != nil {
		switch services.KindOf(err) {
		case services.KindNotFound:
			metrics.Redirects.WithLabelValues("not_found").Inc()
		case services.KindGone:
			metrics.Redirects.WithLabelValues("gone").Inc()
		default:
			metrics.Redirects.WithLabelValues("error").Inc()
		}
		c.Error(err)
		return
	}

	click := h.clickRecorder.NewClick(link.ID, c.ClientIP(), c.Request.UserAgent(), c.Request.Referer())
	if h.cfg.ClickRecordMode == config.RecordModeSync {
		if err := h.clickRecorder.Record(ctx, click); err != nil {
			metrics.Redirects.WithLabelValues("error").Inc()
			c.Error(err)
			return
		}
	} else {
		h.clickRecorder.Enqueue(ctx, click)
	}

	metrics.Redirects.WithLabelValues("found").Inc()
	c.Redirect(http.StatusFound, link.OriginalURL)
}
