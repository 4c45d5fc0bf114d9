package alert

import (
	"alertbot/internal/models"
	"errors"
	"testing"
	"time"
)

func TestParseScenario(t *testing.T) {
	sig, err := Parse("LSE_DLY:SRP UP 189.8 0.6 1.819 2.378 2.839 3.204 3.478 3.68 3.83 3.94 4.023")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig.Ticker != "LSE_DLY:SRP" || sig.Direction != models.DirectionUp || sig.ReferencePrice != 189.8 {
		t.Errorf("unexpected signal %+v", sig)
	}
	if len(sig.ATR) != ATRCount || sig.ATR[3] != 2.839 || sig.ATR[9] != 4.023 {
		t.Errorf("unexpected ATR series %v", sig.ATR)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		few   bool
	}{
		{"ten tokens", "LSE_DLY:SRP UP 189.8 0.6 1.8 2.3 2.8 3.2 3.4 3.6", true},
		{"empty", "   ", true},
		{"bad price", "X DOWN abc 1 2 3 4 5 6 7 8 9 10", false},
		{"bad atr", "X DOWN 10 1 2 3 4 five 6 7 8 9 10", false},
		{"nan atr", "X DOWN 10 1 2 3 4 NaN 6 7 8 9 10", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if errors.Is(err, ErrTooFewTokens) != tc.few {
				t.Errorf("ErrTooFewTokens mismatch: %v", err)
			}
		})
	}
}

func TestParseIgnoresExtraTokensAndUppercasesDirection(t *testing.T) {
	sig, err := Parse("BATS:GNE down 15.4 1 2 3 4 5 6 7 8 9 10 extra tokens")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig.Direction != models.DirectionDown || len(sig.ATR) != ATRCount {
		t.Errorf("unexpected signal %+v", sig)
	}
}

func TestDecodeWebhook(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	line := "LSE_DLY:SRP UP 189.8 0.6 1.819 2.378 2.839 3.204 3.478 3.68 3.83 3.94 4.023"

	p, err := DecodeWebhook([]byte(line+"\n"), "text/plain", now)
	if err != nil || p.Message != line || !p.Timestamp.Equal(now) || p.TestMode {
		t.Errorf("plain text: %+v %v", p, err)
	}

	p, err = DecodeWebhook([]byte(`{"message":"`+line+`","timestamp":1792400000.5,"test_mode":true}`), "application/json", now)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if p.Timestamp.Unix() != 1792400000 || p.Timestamp.Nanosecond() != 500000000 || !p.TestMode {
		t.Errorf("json: unexpected payload %+v", p)
	}

	p, err = DecodeWebhook([]byte(`{"message":"`+line+`","test_mode":"false"}`), "", now)
	if err != nil || !p.Timestamp.Equal(now) || p.TestMode {
		t.Errorf("json without timestamp: %+v %v", p, err)
	}

	if _, err := DecodeWebhook([]byte(`{"timestamp":1}`), "application/json", now); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := DecodeWebhook([]byte(""), "text/plain", now); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := DecodeWebhook([]byte(`{"message":`), "application/json", now); err == nil {
		t.Error("expected error for broken JSON")
	}
}
