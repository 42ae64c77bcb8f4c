package main

import (
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/rs/zerolog/log"

	"github.com/modelsmith/cardstore/internal/configs"
	registryRoute "github.com/modelsmith/cardstore/internal/registry/route"
	"github.com/modelsmith/cardstore/pkg/httpframework"
	"github.com/modelsmith/cardstore/pkg/infra"
	"github.com/modelsmith/cardstore/pkg/logger"
	"github.com/modelsmith/cardstore/pkg/metric"
)

type AppConfig struct {
	Configs configs.Configs
}

func (cfg *AppConfig) GetStaticConfig() interface{} {
	return &cfg.Configs
}

var appConfig AppConfig

func main() {
	configs.InitConfig(&appConfig)

	logger.Init(appConfig.Configs)

	infra.InitDBConnectors()

	metric.Init(appConfig.Configs)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	httpframework.Init(cors.New(corsConfig))

	registryRoute.Init(appConfig.Configs)

	port := appConfig.Configs.AppPort
	if port == 0 {
		port = 8082
		log.Warn().Int("port", port).Msg("App port not set, defaulting to 8082")
	}
	if err := httpframework.Instance().Run(":" + strconv.Itoa(port)); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
