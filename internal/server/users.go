package server

import (
	"alertbot/internal/auth"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type addUserRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
	Role     string `json:"role" form:"role"`
}

type passwordRequest struct {
	Password string `json:"password" form:"password" binding:"required"`
}

func (s *Server) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "users": s.deps.Users.List()})
}

func (s *Server) addUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "Нужны username и password")
		return
	}
	if req.Role != "" && req.Role != auth.RoleAdmin && req.Role != auth.RoleUser {
		fail(c, http.StatusBadRequest, "Неизвестная роль: "+req.Role)
		return
	}

	err := s.deps.Users.Add(req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		fail(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.logEntry().WithField("user", req.Username).WithField("by", auth.CurrentUser(c)).Info("Пользователь добавлен.")
	c.JSON(http.StatusCreated, gin.H{"status": "success", "user": req.Username})
}

func (s *Server) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "Нужен password")
		return
	}

	user := auth.CurrentUser(c)
	err := s.deps.Users.ChangePassword(user, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		fail(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.logEntry().WithField("user", user).Info("Пароль изменён.")
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
