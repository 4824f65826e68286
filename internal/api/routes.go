package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"aptmap/server/config"
	"aptmap/server/internal/database"
)

func SetupRoutes(router *gin.Engine, db *database.Database, cfg *config.Config, logger *logrus.Logger) {
	handler := NewHandler(db, cfg, logger)

	api := router.Group("/api")
	{
		m := api.Group("/map")
		{
			m.GET("/trades", handler.GetTradeClusters)
			m.GET("/rents", handler.GetRentClusters)
			m.GET("/tiles/:z/:x/:y", handler.GetTile)
			m.GET("/apt/recent-trades", handler.GetRecentTrades)
			m.GET("/apt/recent-rents", handler.GetRecentRents)
			m.GET("/apt/summary", handler.GetTradeSummary)
			m.GET("/apt/rent-summary", handler.GetRentSummary)
		}

		chart := api.Group("/chart")
		{
			chart.GET("/apt-price", handler.GetTradePriceChart)
			chart.GET("/apt-jeonse", handler.GetJeonseChart)
			chart.GET("/apt-monthly", handler.GetMonthlyChart)
		}
	}
}
