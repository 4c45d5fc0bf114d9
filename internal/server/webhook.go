package server

import (
	"alertbot/internal/alert"
	"alertbot/internal/engine"
	"alertbot/internal/stream"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

func (s *Server) webhook(c *gin.Context) {
	if !s.webhookAuthorized(c) {
		fail(c, http.StatusUnauthorized, "Неверный токен вебхука")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, "Не удалось прочитать тело запроса")
		return
	}

	payload, err := alert.DecodeWebhook(body, c.ContentType(), s.now())
	if err != nil {
		res := engine.Result{
			Status:  engine.StatusError,
			Kind:    engine.KindParse,
			Message: err.Error(),
		}
		s.publish(res)
		c.JSON(http.StatusBadRequest, res)
		return
	}

	res := s.deps.Engine.ProcessAlert(c.Request.Context(), payload)
	s.publish(res)
	c.JSON(statusFor(res), res)
}

func (s *Server) webhookAuthorized(c *gin.Context) bool {
	if s.cfg.WebhookToken == "" {
		return true
	}
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("X-Webhook-Token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WebhookToken)) == 1
}

func (s *Server) publish(res engine.Result) {
	if s.deps.Feed != nil {
		s.deps.Feed.Publish(stream.EventTypeAlert, res)
	}
}

// statusFor переводит класс отказа в HTTP статус.
func statusFor(res engine.Result) int {
	if res.Status == engine.StatusSuccess {
		return http.StatusOK
	}
	switch res.Kind {
	case engine.KindParse:
		return http.StatusBadRequest
	case engine.KindValidation:
		return http.StatusConflict
	case engine.KindConfiguration, engine.KindStale, engine.KindCalculation:
		return http.StatusUnprocessableEntity
	case engine.KindQuoteUnavailable:
		return http.StatusServiceUnavailable
	case engine.KindBroker:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
