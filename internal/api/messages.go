package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/bjo163/wablast/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerMessageRoutes() {
	webserver.ApiGET("/whatsapp/messages", listMessages)
	webserver.ApiGET("/whatsapp/messages/total", getMessageTotals)
	webserver.ApiGET("/whatsapp/messages/recent", listRecentMessages)
	webserver.ApiGET("/whatsapp/messages/stats", getMessageStats)
}

// messageQuery applies the shared status/deviceName filters. The dashboard
// sends status as a repeated query parameter.
func messageQuery(c echo.Context, db *gorm.DB) *gorm.DB {
	q := db.Model(&domain.WaMessage{})
	if statuses := c.QueryParams()["status"]; len(statuses) > 0 {
		var expanded []string
		for _, s := range statuses {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					expanded = append(expanded, part)
				}
			}
		}
		if len(expanded) > 0 {
			q = q.Where("status in ?", expanded)
		}
	}
	if dev := c.QueryParam("deviceName"); dev != "" {
		q = q.Where("device_name = ?", dev)
	}
	return q
}

func listMessages(c echo.Context) error {
	var msgs []domain.WaMessage
	err := messageQuery(c, GetDB(c)).
		Order("created_at desc").
		Limit(500).
		Find(&msgs).Error
	if err != nil {
		zap.L().Warn("api: list messages failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list messages", err.Error())
	}
	return ok(c, msgs)
}

func listRecentMessages(c echo.Context) error {
	var msgs []domain.WaMessage
	err := messageQuery(c, GetDB(c)).
		Order("created_at desc").
		Limit(10).
		Find(&msgs).Error
	if err != nil {
		zap.L().Warn("api: recent messages failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list messages", err.Error())
	}
	return ok(c, msgs)
}

// getMessageTotals feeds the dashboard counters. "sent" covers everything
// dispatched but not yet read; "read" includes played voice notes.
func getMessageTotals(c echo.Context) error {
	db := GetDB(c)

	count := func(statuses ...string) int64 {
		var n int64
		q := db.Model(&domain.WaMessage{})
		if dev := c.QueryParam("deviceName"); dev != "" {
			q = q.Where("device_name = ?", dev)
		}
		if len(statuses) > 0 {
			q = q.Where("status in ?", statuses)
		}
		q.Count(&n)
		return n
	}

	return ok(c, map[string]int64{
		"total":   count(),
		"sent":    count(domain.MsgSent, domain.MsgDelivered),
		"failed":  count(domain.MsgFailed),
		"read":    count(domain.MsgRead, domain.MsgPlayed),
		"pending": count(domain.MsgPending),
	})
}

// getMessageStats summarizes delivery latency for delivered/read jobs and
// the last day of send counters.
func getMessageStats(c echo.Context) error {
	db := GetDB(c)

	var rows []domain.WaMessage
	err := db.Where("sent_at is not null and status in ?",
		[]string{domain.MsgDelivered, domain.MsgRead, domain.MsgPlayed}).
		Order("sent_at desc").
		Limit(1000).
		Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STATS_FAILED", "Failed to compute stats", err.Error())
	}

	var latencies []float64
	for _, m := range rows {
		if m.SentAt != nil && m.StatusAt != nil && m.StatusAt.After(*m.SentAt) {
			latencies = append(latencies, m.StatusAt.Sub(*m.SentAt).Seconds())
		}
	}

	var mean, median, p90 float64
	if len(latencies) > 0 {
		mean, _ = stats.Mean(latencies)
		median, _ = stats.Median(latencies)
		p90, _ = stats.Percentile(latencies, 90)
	}

	now := time.Now()
	dayAgo := now.Add(-24 * time.Hour)
	return ok(c, map[string]interface{}{
		"count":         len(latencies),
		"meanSeconds":   mean,
		"medianSeconds": median,
		"p90Seconds":    p90,
		"sent24h":       metrics.SumOver(metrics.MessageSent, dayAgo, now),
		"failed24h":     metrics.SumOver(metrics.MessageFailed, dayAgo, now),
	})
}
