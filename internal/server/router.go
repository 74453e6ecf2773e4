package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/yungbote/arbor/internal/handlers"
)

type RouterConfig struct {
  TreeHandler *handlers.TreeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
    },
    AllowMethods:     []string{"GET", "POST", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  categories := router.Group("/categories")
  {
    categories.GET("/roots", cfg.TreeHandler.GetRoots)
    categories.GET("/path", cfg.TreeHandler.GetByPath)
    categories.POST("/path", cfg.TreeHandler.CreateByPath)
    categories.GET("/:id/parent", cfg.TreeHandler.GetParent)
    categories.GET("/:id/children", cfg.TreeHandler.GetChildren)
    categories.GET("/:id/ancestors", cfg.TreeHandler.GetAncestors)
    categories.GET("/:id/descendants", cfg.TreeHandler.GetDescendants)
  }

  return router
}
