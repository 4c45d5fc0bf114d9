package server

import (
	"alertbot/internal/engine"
	"alertbot/internal/stream"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) positions(c *gin.Context) {
	positions, err := s.deps.Engine.Positions(c.Request.Context())
	if err != nil {
		s.brokerFailure(c, "Не удалось получить позиции", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"position_count": len(positions),
		"positions":      positions,
	})
}

func (s *Server) positionStatus(c *gin.Context) {
	ref := c.Query("deal_reference")
	if ref == "" {
		ref = c.Query("reference")
	}
	st, err := s.deps.Engine.PositionStatus(c.Request.Context(), ref, c.Query("ticker"))
	switch {
	case errors.Is(err, engine.ErrMissingReference):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, engine.ErrNoTradeToday):
		fail(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.brokerFailure(c, "Не удалось проверить статус позиции", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "position": st})
}

type todayTrade struct {
	Time          string  `json:"time"`
	Direction     string  `json:"direction"`
	EntryPrice    float64 `json:"entry_price"`
	PositionSize  float64 `json:"position_size"`
	DealReference string  `json:"deal_reference,omitempty"`
	DealStatus    string  `json:"deal_status,omitempty"`
	Epic          string  `json:"epic"`
	Error         string  `json:"error,omitempty"`
}

func (s *Server) todayTrades(c *gin.Context) {
	records := s.deps.Engine.TodayTrades()
	trades := make(map[string]todayTrade, len(records))
	for _, rec := range records {
		trades[rec.Ticker] = todayTrade{
			Time:          rec.Time.Format("2006-01-02T15:04:05Z07:00"),
			Direction:     string(rec.Params.Direction),
			EntryPrice:    rec.Params.EntryPrice,
			PositionSize:  rec.Params.PositionSize,
			DealReference: rec.Result.DealReference,
			DealStatus:    string(rec.Result.Status),
			Epic:          rec.Epic,
			Error:         rec.Error,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"trade_count": len(trades),
		"trades":      trades,
	})
}

func (s *Server) resetTrades(c *gin.Context) {
	s.deps.Engine.ResetDailyTrades()
	if s.deps.Feed != nil {
		s.deps.Feed.Publish(stream.EventTypeTradesReset, nil)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Журнал сделок за день очищен"})
}

func (s *Server) transactions(c *gin.Context) {
	days, maxResults := historyParams(c)
	txs, err := s.deps.Engine.Transactions(c.Request.Context(), days, maxResults)
	if err != nil {
		s.brokerFailure(c, "Не удалось получить транзакции", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"days_history": days,
		"count":        len(txs),
		"transactions": txs,
	})
}

func (s *Server) activities(c *gin.Context) {
	days, maxResults := historyParams(c)
	acts, err := s.deps.Engine.Activities(c.Request.Context(), days, maxResults)
	if err != nil {
		s.brokerFailure(c, "Не удалось получить активность", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"days_history": days,
		"count":        len(acts),
		"activities":   acts,
	})
}

func (s *Server) history(c *gin.Context) {
	days, maxResults := historyParams(c)
	h, err := s.deps.Engine.History(c.Request.Context(), days, maxResults)
	if err != nil {
		s.brokerFailure(c, "Не удалось получить историю", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "history": h})
}

func (s *Server) workingOrders(c *gin.Context) {
	orders, err := s.deps.Engine.WorkingOrders(c.Request.Context())
	if err != nil {
		s.brokerFailure(c, "Не удалось получить рабочие заявки", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"order_count": len(orders),
		"orders":      orders,
	})
}

func (s *Server) cancelOrder(c *gin.Context) {
	res, err := s.deps.Engine.CancelOrder(c.Request.Context(), c.Param("dealId"))
	if err != nil {
		s.brokerFailure(c, "Не удалось отменить заявку", err)
		return
	}
	if !res.Accepted() {
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": res.Reason, "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": res})
}

func (s *Server) brokerFailure(c *gin.Context, message string, err error) {
	s.logEntry().WithError(err).Warn(message)
	fail(c, http.StatusBadGateway, message+": "+err.Error())
}

// historyParams: days и max (или max_results), по умолчанию 7 и 50.
func historyParams(c *gin.Context) (int, int) {
	days := queryInt(c, "days", 7)
	maxResults := queryInt(c, "max", 0)
	if maxResults == 0 {
		maxResults = queryInt(c, "max_results", 50)
	}
	return days, maxResults
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
