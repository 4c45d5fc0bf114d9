package server

import (
	"alertbot/internal/alert"
	"alertbot/internal/auth"
	"alertbot/internal/config"
	"alertbot/internal/dividend"
	"alertbot/internal/engine"
	"alertbot/internal/logger"
	"alertbot/internal/models"
	"alertbot/internal/stream"
	"alertbot/internal/tickers"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Engine - операции оркестратора, доступные по HTTP.
type Engine interface {
	ProcessAlert(ctx context.Context, payload alert.Payload) engine.Result
	PositionStatus(ctx context.Context, dealReference, ticker string) (engine.PositionStatus, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Transactions(ctx context.Context, days, maxResults int) ([]models.Transaction, error)
	Activities(ctx context.Context, days, maxResults int) ([]models.Activity, error)
	History(ctx context.Context, days, maxResults int) (engine.History, error)
	WorkingOrders(ctx context.Context) ([]models.WorkingOrder, error)
	CancelOrder(ctx context.Context, dealID string) (models.OrderResult, error)
	TodayTrades() []engine.TradeRecord
	ResetDailyTrades()
}

type TickerTable interface {
	All() []tickers.Config
	Len() int
	Replace(r io.Reader) (int, error)
}

type UserStore interface {
	Authenticate(username, password string) (auth.User, error)
	Add(username, password, role string) error
	ChangePassword(username, password string) error
	List() []auth.User
}

type Feed interface {
	Publish(eventType stream.EventType, data any)
	Serve(w http.ResponseWriter, r *http.Request) error
}

type DividendRunner interface {
	Run(ctx context.Context) ([]dividend.Entry, error)
}

type Deps struct {
	Engine    Engine
	Tickers   TickerTable
	Users     UserStore
	Issuer    *auth.Issuer
	Feed      Feed
	Dividends DividendRunner
}

type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	log    *logger.Logger
	router *gin.Engine
	now    func() time.Time
}

func New(cfg config.ServerConfig, deps Deps, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log,
		now:  time.Now,
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает cfg.Addr до отмены ctx, затем корректно останавливается.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logEntry().WithField("addr", s.cfg.Addr).Info("HTTP сервер запущен.")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logEntry().Info("Остановка HTTP сервера.")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		entry := s.logEntry().WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond).String(),
			"ip":       c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP запрос завершился ошибкой.")
			return
		}
		entry.Debug("HTTP запрос.")
	}
}

func (s *Server) logEntry() *logrus.Entry {
	return s.log.WithComponent("http")
}
