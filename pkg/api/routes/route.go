package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/autoclaw/autoclaw-backend/pkg/api/handlers"
	"github.com/autoclaw/autoclaw-backend/pkg/api/servers"
	"github.com/autoclaw/autoclaw-backend/pkg/services"
)

func SetupRoutes(server *servers.Server, deploymentService *services.DeploymentService) {
	apiV1 := server.Router.Group("/api/v1")
	setupV1Routes(apiV1, deploymentService)

	server.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func setupV1Routes(router *gin.RouterGroup, deploymentService *services.DeploymentService) {
	// Health routes
	setupHealthRoutes(router.Group("/health"))

	// Deployment routes
	setupDeploymentRoutes(router.Group("/deployments"), deploymentService)
}

func setupHealthRoutes(router *gin.RouterGroup) {
	handler := handlers.NewHealthHandler()
	router.GET("", handler.GetHealth)
}

func setupDeploymentRoutes(router *gin.RouterGroup, deploymentService *services.DeploymentService) {
	handler := handlers.NewDeploymentHandler(deploymentService)
	router.POST("", handler.Provision)
	router.GET("", handler.List)
	router.GET("/:id", handler.GetStatus)
	router.DELETE("/:id", handler.Delete)
	router.POST("/:id/renew", handler.Renew)
}
