package server

import (
	"alertbot/internal/auth"
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "Нужны username и password")
		return
	}

	user, err := s.deps.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		s.logEntry().WithField("user", req.Username).Warn("Неудачная попытка входа.")
		fail(c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	token, expires, err := s.deps.Issuer.Issue(user)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(s.deps.Issuer.TTL().Seconds()), "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"user":       user.Username,
		"role":       user.Role,
		"expires_at": expires,
		"token":      token,
	})
}

func (s *Server) logout(c *gin.Context) {
	c.SetCookie(auth.CookieName, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) feed(c *gin.Context) {
	if s.deps.Feed == nil {
		fail(c, http.StatusNotFound, "Лента отключена")
		return
	}
	if err := s.deps.Feed.Serve(c.Writer, c.Request); err != nil {
		s.logEntry().WithError(err).Warn("Не удалось открыть ленту.")
	}
}
