package server

import (
	"alertbot/internal/auth"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) routes() {
	r := s.router

	r.GET("/health", s.health)
	r.POST("/webhook", s.webhook)
	r.POST("/login", s.login)
	r.POST("/logout", s.logout)

	dash := r.Group("/", auth.RequireSession(s.deps.Issuer))
	dash.GET("/positions", s.positions)
	dash.GET("/position/status", s.positionStatus)
	dash.GET("/position/today", s.todayTrades)
	dash.GET("/history/transactions", s.transactions)
	dash.GET("/history/activity", s.activities)
	dash.GET("/history/all", s.history)
	dash.GET("/orders", s.workingOrders)
	dash.GET("/tickers", s.tickerTable)
	dash.GET("/logs", s.logFiles)
	dash.GET("/logs/:name", s.logFile)
	dash.GET("/ws", s.feed)
	dash.POST("/password", s.changePassword)

	admin := dash.Group("/", auth.RequireAdmin())
	admin.DELETE("/orders/:dealId", s.cancelOrder)
	admin.POST("/position/today/reset", s.resetTrades)
	admin.POST("/tickers/upload", s.uploadTickers)
	admin.POST("/dividends/refresh", s.refreshDividends)
	admin.GET("/users", s.listUsers)
	admin.POST("/users", s.addUser)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"message":      "Сервер алертов работает",
		"ticker_count": s.deps.Tickers.Len(),
	})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}
