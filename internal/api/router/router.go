package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daechan-jo/auto-store-services-coupang/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "coupang-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - submit a job for the agent
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - list jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
