package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/config"
	"github.com/yeremiapane/agrimarket/database"
	"github.com/yeremiapane/agrimarket/hub"
	"github.com/yeremiapane/agrimarket/router"
	"github.com/yeremiapane/agrimarket/utils"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}

	utils.InitLogger(cfg.LogLevel)
	utils.ConfigureJWT(cfg.JWTSecret, cfg.JWTTTL())
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	h := hub.New()
	r := router.SetupRouter(db, h, cfg)
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.Warnf("Trusted proxies not set: %v", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"port":   cfg.Port,
		"driver": cfg.DBDriver,
		"mode":   gin.Mode(),
	}).Info("Listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}
