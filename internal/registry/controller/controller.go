package controller

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/modelsmith/cardstore/internal/configs"
	"github.com/modelsmith/cardstore/internal/registry/handler"
	"github.com/modelsmith/cardstore/pkg/api"
)

type Cards interface {
	Register(ctx *gin.Context)
	List(ctx *gin.Context)
	Load(ctx *gin.Context)
	Update(ctx *gin.Context)
	Delete(ctx *gin.Context)
	Repositories(ctx *gin.Context)
	Names(ctx *gin.Context)
	ModelMetadata(ctx *gin.Context)
}

var (
	cardsController Cards
	once            sync.Once
)

type V1 struct {
	Registry handler.Registry
}

func NewCardsController(config configs.Configs) Cards {
	if cardsController == nil {
		once.Do(func() {
			cardsController = &V1{
				Registry: handler.InitV1RegistryHandler(config),
			}
		})
	}
	return cardsController
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps handler errors to HTTP status codes.
func statusOf(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}

func (c *V1) Register(ctx *gin.Context) {
	var request handler.RegisterRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	response, err := c.Registry.Register(ctx.Request.Context(), request)
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, response)
}

func (c *V1) List(ctx *gin.Context) {
	var request handler.ListRequest
	if err := ctx.ShouldBindQuery(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	response, err := c.Registry.List(ctx.Request.Context(), request)
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *V1) Load(ctx *gin.Context) {
	response, err := c.Registry.Load(ctx.Request.Context(), ctx.Param("uid"))
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *V1) Update(ctx *gin.Context) {
	var request handler.UpdateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	response, err := c.Registry.Update(ctx.Request.Context(), ctx.Param("uid"), request)
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *V1) Delete(ctx *gin.Context) {
	if err := c.Registry.Delete(ctx.Request.Context(), ctx.Param("uid")); err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, handler.Message{Message: "deleted"})
}

func (c *V1) Repositories(ctx *gin.Context) {
	response, err := c.Registry.Repositories(ctx.Request.Context(), ctx.Query("card_type"))
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *V1) Names(ctx *gin.Context) {
	response, err := c.Registry.Names(ctx.Request.Context(), ctx.Query("card_type"), ctx.Query("repository"))
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *V1) ModelMetadata(ctx *gin.Context) {
	uid := ctx.Query("uid")
	if uid == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: "uid is required"})
		return
	}
	response, err := c.Registry.ModelMetadata(ctx.Request.Context(), uid)
	if err != nil {
		ctx.JSON(statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, response)
}
