package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"downtime-report-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. Read endpoints are served through
// responses, which the ingestion service flushes whenever stored data changes.
func NewRouter(handler *Handler, responses *mw.ResponseCache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), mw.Metrics())
	r.MaxMultipartMemory = handler.cfg.Server.MaxUploadMB << 20

	caching := responses.Middleware()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/reports", handler.UploadReport)
		api.GET("/reports", caching, handler.ListReports)
		api.GET("/reports/:id", caching, handler.GetReport)
		api.DELETE("/reports/:id", handler.DeleteReport)

		api.GET("/machines", caching, handler.ListMachines)
		api.GET("/error-codes", caching, handler.ListErrorCodes)
		api.GET("/downtimes", caching, handler.ListDowntimes)

		stats := api.Group("/stats", caching)
		stats.GET("/summary", handler.GetSummary)
		stats.GET("/machines", handler.GetMachineStats)
		stats.GET("/error-types", handler.GetErrorTypeStats)
		stats.GET("/timeline", handler.GetTimeline)
		stats.GET("/critical", handler.GetCriticalIssues)
		stats.GET("/comparison", handler.GetComparison)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
