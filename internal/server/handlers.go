package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/pixelcount/internal/tracker"
)

type viewJSON struct {
	TS     int64  `json:"ts"`
	Domain string `json:"domain"`
	Page   string `json:"page"`
}

type statsJSON struct {
	TotalEvents int64      `json:"total_events"`
	UniquePages int64      `json:"unique_pages"`
	Latest      []viewJSON `json:"latest"`
}

type dailyJSON struct {
	Domain    string `json:"domain"`
	Page      string `json:"page"`
	Date      string `json:"date"`
	ViewCount int64  `json:"view_count"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// countView records the view and always answers with the pixel; a failed
// write must not break the embedding page.
func (s *Server) countView(c *gin.Context) {
	domain := c.Query("domain")
	page := c.Query("page")

	// Finish the write even if the browser goes away mid-request.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.tracker.RecordView(ctx, domain, page); err != nil {
		s.logger.Warnf("pixel served without recording id=%s: %v", c.GetString(requestIDKey), err)
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

func (s *Server) stats(c *gin.Context) {
	domain, byDomain := c.GetQuery("domain")
	req := tracker.StatsRequest{
		Domain:   domain,
		ByDomain: byDomain,
		Limit:    parseLimit(c.Query("limit")),
	}

	summary, err := s.tracker.QueryStats(c.Request.Context(), req)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	out := statsJSON{
		TotalEvents: summary.TotalEvents,
		UniquePages: summary.UniquePages,
		Latest:      make([]viewJSON, len(summary.Latest)),
	}
	for i, e := range summary.Latest {
		out.Latest[i] = viewJSON{TS: e.Timestamp.Unix(), Domain: e.Domain, Page: e.Page}
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, out)
}

func (s *Server) daily(c *gin.Context) {
	domain, byDomain := c.GetQuery("domain")

	counts, err := s.tracker.DailyViews(c.Request.Context(), tracker.StatsRequest{Domain: domain, ByDomain: byDomain})
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	days := make([]dailyJSON, len(counts))
	for i, dc := range counts {
		days[i] = dailyJSON{Domain: dc.Domain, Page: dc.Page, Date: dc.Date, ViewCount: dc.ViewCount}
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (s *Server) health(c *gin.Context) {
	if err := s.tracker.Ping(c.Request.Context()); err != nil {
		s.logger.Errorf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseLimit returns 0 (use the default) for anything that is not a
// positive integer.
func parseLimit(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
