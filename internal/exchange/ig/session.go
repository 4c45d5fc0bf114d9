package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var errNotAuthenticated = exchange.ErrNotAuthenticated

type Credentials struct {
	Identifier string
	Password   string
	ApiKey     string
}

// Session хранит CST / X-SECURITY-TOKEN и лениво выполняет вход.
type Session struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	log        *logger.Logger

	mu            sync.Mutex
	cst           string
	securityToken string
}

func NewSession(baseURL string, creds Credentials, log *logger.Logger) *Session {
	return &Session{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type sessionRequest struct {
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	EncryptedPassword bool   `json:"encryptedPassword"`
}

type sessionResponse struct {
	CurrentAccountID string `json:"currentAccountId"`
}

// EnsureAuthenticated возвращает true, если сессия уже есть или вход удался.
func (s *Session) EnsureAuthenticated(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cst != "" && s.securityToken != "" {
		return true
	}
	if err := s.login(ctx); err != nil {
		s.log.WithComponent("ig").WithError(err).Error("Не удалось войти в IG.")
		return false
	}
	return true
}

func (s *Session) Invalidate() {
	s.mu.Lock()
	s.cst = ""
	s.securityToken = ""
	s.mu.Unlock()
}

func (s *Session) login(ctx context.Context) error {
	payload, err := json.Marshal(sessionRequest{
		Identifier: s.creds.Identifier,
		Password:   s.creds.Password,
	})
	if err != nil {
		return fmt.Errorf("Не удалось подготовить тело запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/session", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("Не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	req.Header.Set("X-IG-API-KEY", s.creds.ApiKey)
	req.Header.Set("Version", "2")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Ошибка запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &APIError{Status: resp.StatusCode, Code: eb.ErrorCode}
	}

	cst := resp.Header.Get("CST")
	token := resp.Header.Get("X-SECURITY-TOKEN")
	if cst == "" || token == "" {
		return fmt.Errorf("IG не вернул токены сессии")
	}

	var body sessionResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	s.cst = cst
	s.securityToken = token
	s.log.WithComponent("ig").WithField("account_id", body.CurrentAccountID).Info("Вход в IG выполнен.")
	return nil
}

func (s *Session) apply(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cst != "" {
		req.Header.Set("CST", s.cst)
	}
	if s.securityToken != "" {
		req.Header.Set("X-SECURITY-TOKEN", s.securityToken)
	}
}
