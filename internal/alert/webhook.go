package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrEmptyMessage = errors.New("В запросе нет текста алерта")

// Payload - входящий вебхук: строка алерта и её метаданные.
type Payload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	TestMode  bool      `json:"test_mode"`
}

type webhookBody struct {
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
	TestMode  json.RawMessage `json:"test_mode"`
}

// DecodeWebhook принимает либо голую строку алерта, либо JSON
// {message, timestamp?, test_mode?}. Без timestamp время алерта = now.
func DecodeWebhook(body []byte, contentType string, now time.Time) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(strings.ToLower(contentType), "json") || bytes.HasPrefix(trimmed, []byte("{")) {
		return decodeJSON(trimmed, now)
	}

	msg := strings.TrimSpace(string(trimmed))
	if msg == "" {
		return Payload{}, ErrEmptyMessage
	}
	return Payload{Message: msg, Timestamp: now}, nil
}

func decodeJSON(body []byte, now time.Time) (Payload, error) {
	var raw webhookBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, fmt.Errorf("Некорректный JSON вебхука: %w", err)
	}

	p := Payload{Message: strings.TrimSpace(raw.Message), Timestamp: now}
	if p.Message == "" {
		return Payload{}, ErrEmptyMessage
	}

	if ts, ok, err := decodeTimestamp(raw.Timestamp); err != nil {
		return Payload{}, err
	} else if ok {
		p.Timestamp = ts
	}

	testMode, err := decodeBool(raw.TestMode)
	if err != nil {
		return Payload{}, err
	}
	p.TestMode = testMode
	return p, nil
}

// decodeTimestamp: секунды эпохи числом или строкой, допускается дробная часть.
func decodeTimestamp(raw json.RawMessage) (time.Time, bool, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, false, fmt.Errorf("Некорректный timestamp: %s", s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)), true, nil
}

func decodeBool(raw json.RawMessage) (bool, error) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	switch s {
	case "", "null", "false", "0":
		return false, nil
	case "true", "1":
		return true, nil
	default:
		return false, fmt.Errorf("Некорректный test_mode: %s", s)
	}
}
