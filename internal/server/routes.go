package server

import (
	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Search routes
	apiRoutes.GET("/search", routes.SearchHandler)

	// Organization routes
	apiRoutes.GET("/organizations", routes.GetOrganizationsHandler)
	apiRoutes.GET("/organizations/by-industry-text", routes.GetOrganizationsByIndustryTextHandler)
	apiRoutes.GET("/organizations/weight-sum", routes.GetOrganizationWeightSumHandler)
	apiRoutes.GET("/family-tree", routes.GetFamilyTreeHandler)

	// Activity feed routes
	apiRoutes.GET("/activities", routes.GetActivitiesHandler)
	apiRoutes.GET("/activities/by-source", routes.GetActivitiesBySourceHandler)
	apiRoutes.GET("/activities/by-industry", routes.GetActivitiesByIndustryHandler)

	// Snapshot stats and import history
	apiRoutes.GET("/stats", routes.GetStatsHandler)
	apiRoutes.GET("/imports", routes.GetImportsHandler)

	// Feedback and operator routes
	apiRoutes.POST("/feedbacks", routes.CreateFeedbackHandler)
	apiRoutes.POST("/watches", routes.CreateWatchHandler)
	apiRoutes.POST("/admin/jobs", routes.EnqueueJobHandler)
}
