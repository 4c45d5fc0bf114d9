package auth

import (
	"alertbot/internal/logger"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin"
)

var (
	ErrInvalidCredentials = errors.New("Неверное имя пользователя или пароль")
	ErrUserExists         = errors.New("Пользователь уже существует")
	ErrUserNotFound       = errors.New("Пользователь не найден")
)

type User struct {
	Username     string     `yaml:"-" json:"username"`
	PasswordHash string     `yaml:"password_hash" json:"-"`
	Role         string     `yaml:"role" json:"role"`
	LastLogin    *time.Time `yaml:"last_login,omitempty" json:"last_login,omitempty"`
	LoginCount   int        `yaml:"login_count" json:"login_count"`
}

// Users - файл пользователей дашборда (YAML, пароли в bcrypt).
type Users struct {
	mu    sync.Mutex
	path  string
	users map[string]User
	log   *logger.Logger
	now   func() time.Time
}

// OpenUsers читает файл пользователей; если файла нет, создаёт его
// с пользователем admin/admin.
func OpenUsers(path string, log *logger.Logger) (*Users, error) {
	u := &Users{
		path:  path,
		users: map[string]User{},
		log:   log,
		now:   time.Now,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := u.add(defaultAdminUser, defaultAdminPassword, RoleAdmin); err != nil {
			return nil, err
		}
		if err := u.save(); err != nil {
			return nil, err
		}
		u.logEntry().WithField("path", path).Warn("Создан пользователь admin с паролем по умолчанию, смените пароль.")
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Не удалось прочитать файл пользователей: %w", err)
	}

	if err := yaml.Unmarshal(data, &u.users); err != nil {
		return nil, fmt.Errorf("Некорректный файл пользователей: %w", err)
	}
	if u.users == nil {
		u.users = map[string]User{}
	}
	for name, user := range u.users {
		user.Username = name
		u.users[name] = user
	}
	return u, nil
}

// Authenticate проверяет пароль и обновляет статистику входов.
func (u *Users) Authenticate(username, password string) (User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[username]
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := u.now()
	user.LastLogin = &now
	user.LoginCount++
	u.users[username] = user
	if err := u.save(); err != nil {
		u.logEntry().WithError(err).Warn("Не удалось сохранить время входа.")
	}

	u.logEntry().WithFields(logrus.Fields{
		"user": username,
		"role": user.Role,
	}).Info("Пользователь вошёл.")
	return user, nil
}

func (u *Users) Add(username, password, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.add(username, password, role); err != nil {
		return err
	}
	return u.save()
}

func (u *Users) ChangePassword(username, password string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[username]
	if !ok {
		return ErrUserNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("Не удалось захешировать пароль: %w", err)
	}
	user.PasswordHash = string(hash)
	u.users[username] = user
	return u.save()
}

func (u *Users) List() []User {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]User, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out
}

func (u *Users) add(username, password, role string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	if _, ok := u.users[username]; ok {
		return ErrUserExists
	}
	if role == "" {
		role = RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("Не удалось захешировать пароль: %w", err)
	}
	u.users[username] = User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	return nil
}

func (u *Users) save() error {
	data, err := yaml.Marshal(u.users)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(u.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := u.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("Не удалось записать файл пользователей: %w", err)
	}
	if err := os.Rename(tmp, u.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("Не удалось записать файл пользователей: %w", err)
	}
	return nil
}

func (u *Users) logEntry() *logrus.Entry {
	return u.log.WithComponent("auth")
}
