package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-review-orchestrator/http/controller"
	middlewares "github.com/tnqbao/gau-review-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	hookRoutes := r.Group("/api/v1/review/hooks")
	{
		hookRoutes.Use(middles.SignedMiddleware)
		hookRoutes.POST("/jobs", ctrl.TriggerReview)
	}

	apiRoutes := r.Group("/api/v1/review")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.POST("/", ctrl.StartReview)
			jobRoutes.POST("/bulk", ctrl.StartBulkReview)
			jobRoutes.GET("/", ctrl.ListJobs)
			jobRoutes.GET("/:id", ctrl.GetJob)
			jobRoutes.POST("/:id/cancel", ctrl.CancelJob)
			jobRoutes.DELETE("/:id", ctrl.DeleteJob)
		}

		baseRoutes := apiRoutes.Group("/bases")
		{
			baseRoutes.POST("/", ctrl.RegisterBase)
			baseRoutes.GET("/", ctrl.ListBases)
			baseRoutes.GET("/:id", ctrl.GetBase)
			baseRoutes.POST("/:id/rescan", ctrl.RescanBase)
			baseRoutes.PUT("/:id/mappings", ctrl.UpdateBaseMappings)
			baseRoutes.PUT("/:id/instructions", ctrl.UpdateBaseInstructions)
			baseRoutes.DELETE("/:id", ctrl.DeleteBase)
			baseRoutes.GET("/:id/records", ctrl.SearchBaseRecords)
		}
	}
	return r
}
