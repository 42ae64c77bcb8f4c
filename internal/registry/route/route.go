package route

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/modelsmith/cardstore/internal/configs"
	"github.com/modelsmith/cardstore/internal/registry/controller"
	"github.com/modelsmith/cardstore/pkg/httpframework"
)

var initRegistryRouterOnce sync.Once

func Init(config configs.Configs) {
	initRegistryRouterOnce.Do(func() {
		httpframework.Instance().GET("/healthcheck", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api := httpframework.Instance().Group("/api")
		{
			v1 := api.Group("/v1")
			{
				cardsGroup := v1.Group("/cards")
				{
					cardsGroup.POST("", controller.NewCardsController(config).Register)
					cardsGroup.GET("", controller.NewCardsController(config).List)
					cardsGroup.GET("/repositories", controller.NewCardsController(config).Repositories)
					cardsGroup.GET("/names", controller.NewCardsController(config).Names)
					cardsGroup.GET("/:uid", controller.NewCardsController(config).Load)
					cardsGroup.PUT("/:uid", controller.NewCardsController(config).Update)
					cardsGroup.DELETE("/:uid", controller.NewCardsController(config).Delete)
				}

				models := v1.Group("/models")
				{
					models.GET("/metadata", controller.NewCardsController(config).ModelMetadata)
				}
			}
		}
	})
}
