package dividend

import (
	"alertbot/internal/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrUnknownExchange = errors.New("Неизвестная биржа для Yahoo")

var yahooSuffixes = map[string]string{
	"ASX_DLY":      ".AX",
	"BATS":         "",
	"LSE_DLY":      ".L",
	"TSX_DLY":      ".TO",
	"HKEX_DLY":     ".HK",
	"TSE_DLY":      ".T",
	"EURONEXT_DLY": ".AS",
	"VIE_DLY":      ".VI",
	"XETR_DLY":     ".DE",
}

// YahooSymbol переводит "LSE_DLY:VOD" в "VOD.L".
func YahooSymbol(symbol string) (string, error) {
	exch, ticker, ok := strings.Cut(strings.TrimSpace(symbol), ":")
	if !ok || exch == "" || ticker == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownExchange, symbol)
	}
	suffix, ok := yahooSuffixes[exch]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExchange, exch)
	}
	if ticker == "BP." {
		ticker = "BP"
	}
	return ticker + suffix, nil
}

type YahooFetcher struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func NewYahooFetcher(baseURL string, log *logger.Logger) *YahooFetcher {
	return &YahooFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			CalendarEvents struct {
				ExDividendDate *struct {
					Raw int64 `json:"raw"`
				} `json:"exDividendDate"`
			} `json:"calendarEvents"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// NextExDividend возвращает ex-dividend дату из календаря Yahoo.
// ok == false, если даты нет.
func (f *YahooFetcher) NextExDividend(ctx context.Context, yahooSymbol string) (time.Time, bool, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=calendarEvents",
		f.baseURL, url.PathEscape(yahooSymbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("Ошибка запроса к Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, false, err
	}

	var out quoteSummaryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 400 {
			return time.Time{}, false, fmt.Errorf("Yahoo вернул %d", resp.StatusCode)
		}
		return time.Time{}, false, fmt.Errorf("Некорректный ответ Yahoo: %w", err)
	}
	if e := out.QuoteSummary.Error; e != nil {
		return time.Time{}, false, fmt.Errorf("Yahoo вернул ошибку %s: %s", e.Code, e.Description)
	}
	if resp.StatusCode >= 400 {
		return time.Time{}, false, fmt.Errorf("Yahoo вернул %d", resp.StatusCode)
	}

	if len(out.QuoteSummary.Result) == 0 {
		return time.Time{}, false, nil
	}
	ex := out.QuoteSummary.Result[0].CalendarEvents.ExDividendDate
	if ex == nil || ex.Raw <= 0 {
		return time.Time{}, false, nil
	}

	date := time.Unix(ex.Raw, 0).UTC()
	f.logEntry().WithFields(logrus.Fields{
		"symbol": yahooSymbol,
		"date":   date.Format("2006-01-02"),
	}).Debug("Получена ex-dividend дата.")
	return date, true, nil
}

func (f *YahooFetcher) logEntry() *logrus.Entry {
	return f.log.WithComponent("dividend")
}
