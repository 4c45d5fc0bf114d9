package tickers

import (
	"alertbot/internal/logger"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

const (
	UnsetEpic  = "?"
	DateLayout = "02/01/2006"
)

var ErrEmptyTable = errors.New("Таблица тикеров пуста")

type Config struct {
	Symbol               string  `json:"symbol"`
	Epic                 string  `json:"epic"`
	ATRStopPeriod        int     `json:"atr_stop_period"`
	ATRStopMultiple      float64 `json:"atr_stop_multiple"`
	ATRProfitPeriod      int     `json:"atr_profit_period"`
	ATRProfitMultiple    float64 `json:"atr_profit_multiple"`
	MaxPositionValue     float64 `json:"max_position_value"`
	OpeningPriceMultiple float64 `json:"opening_price_multiple"`
	NextDividendDate     string  `json:"next_dividend_date"`
}

func (c Config) HasEpic() bool {
	epic := strings.TrimSpace(c.Epic)
	return epic != "" && epic != UnsetEpic
}

// DividendDate разбирает NextDividendDate; "na" и пусто - нет даты.
func (c Config) DividendDate() (time.Time, bool) {
	raw := strings.TrimSpace(c.NextDividendDate)
	if raw == "" || strings.EqualFold(raw, "na") || strings.EqualFold(raw, "nan") {
		return time.Time{}, false
	}
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// row повторяет заголовки CSV буквально, включая опечатку "Postion".
type row struct {
	Symbol               string `csv:"Symbol"`
	Epic                 string `csv:"IG EPIC"`
	ATRStopPeriod        string `csv:"ATR Stop Loss Period"`
	ATRStopMultiple      string `csv:"ATR Stop Loss Multiple"`
	ATRProfitPeriod      string `csv:"ATR Profit Target Period"`
	ATRProfitMultiple    string `csv:"ATR Profit Multiple"`
	MaxPositionValue     string `csv:"Postion Size Max GBP"`
	OpeningPriceMultiple string `csv:"Opening Price Multiple"`
	NextDividendDate     string `csv:"Next dividend date"`
}

type Store struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex
	path    string
	symbols []string
	configs map[string]Config
	log     *logger.Logger
}

func NewStore(path string, log *logger.Logger) *Store {
	return &Store{
		path:    path,
		configs: map[string]Config{},
		log:     log,
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("Не удалось открыть таблицу тикеров %s: %w", s.path, err)
	}
	defer f.Close()

	symbols, configs, err := s.parse(f)
	if err != nil {
		return err
	}
	s.swap(symbols, configs)
	s.logEntry().WithField("count", len(symbols)).Info("Таблица тикеров загружена.")
	return nil
}

// Replace сначала пишет загруженный CSV на диск и только потом подменяет
// таблицу в памяти.
func (s *Store) Replace(r io.Reader) (int, error) {
	symbols, configs, err := s.parse(r)
	if err != nil {
		return 0, err
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	ordered := make([]Config, 0, len(symbols))
	for _, symbol := range symbols {
		ordered = append(ordered, configs[symbol])
	}
	if err := s.write(ordered); err != nil {
		return 0, err
	}
	s.swap(symbols, configs)
	s.logEntry().WithField("count", len(symbols)).Info("Таблица тикеров заменена.")
	return len(symbols), nil
}

func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.write(s.All())
}

func (s *Store) write(configs []Config) error {
	rows := make([]*row, 0, len(configs))
	for _, cfg := range configs {
		rows = append(rows, toRow(cfg))
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("Не удалось сформировать CSV: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tickers-*.csv")
	if err != nil {
		return fmt.Errorf("Не удалось создать временный файл: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("Не удалось записать таблицу тикеров: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("Не удалось записать таблицу тикеров: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("Не удалось сохранить таблицу тикеров: %w", err)
	}
	return nil
}

func (s *Store) Lookup(symbol string) (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[strings.TrimSpace(symbol)]
	return cfg, ok
}

func (s *Store) Epic(symbol string) (string, bool) {
	cfg, ok := s.Lookup(symbol)
	if !ok || !cfg.HasEpic() {
		return "", false
	}
	return strings.TrimSpace(cfg.Epic), true
}

func (s *Store) IsDividendDate(symbol string, today time.Time) bool {
	cfg, ok := s.Lookup(symbol)
	if !ok {
		return false
	}
	date, ok := cfg.DividendDate()
	if !ok {
		return false
	}
	y1, m1, d1 := date.Date()
	y2, m2, d2 := today.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SetDividendDate обновляет дату в памяти; сохранение - через Save.
func (s *Store) SetDividendDate(symbol string, date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[symbol]
	if !ok {
		return false
	}
	cfg.NextDividendDate = date.Format(DateLayout)
	s.configs[symbol] = cfg
	return true
}

func (s *Store) All() []Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Config, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		out = append(out, s.configs[symbol])
	}
	return out
}

func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]string(nil), s.symbols...)
	sort.Strings(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

func (s *Store) swap(symbols []string, configs map[string]Config) {
	s.mu.Lock()
	s.symbols = symbols
	s.configs = configs
	s.mu.Unlock()
}

func (s *Store) parse(r io.Reader) ([]string, map[string]Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("Не удалось прочитать CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, ErrEmptyTable
	}

	var rows []*row
	if err := gocsv.Unmarshal(bytes.NewReader(data), &rows); err != nil {
		return nil, nil, fmt.Errorf("Не удалось разобрать CSV: %w", err)
	}

	symbols := make([]string, 0, len(rows))
	configs := make(map[string]Config, len(rows))
	for i, r := range rows {
		cfg, err := r.toConfig()
		if err != nil {
			s.logEntry().WithError(err).WithField("line", i+2).Warn("Строка таблицы тикеров пропущена.")
			continue
		}
		if _, dup := configs[cfg.Symbol]; !dup {
			symbols = append(symbols, cfg.Symbol)
		}
		configs[cfg.Symbol] = cfg
	}
	if len(symbols) == 0 {
		return nil, nil, ErrEmptyTable
	}
	return symbols, configs, nil
}

func (r *row) toConfig() (Config, error) {
	cfg := Config{
		Symbol:           strings.TrimSpace(r.Symbol),
		Epic:             strings.TrimSpace(r.Epic),
		NextDividendDate: strings.TrimSpace(r.NextDividendDate),
	}
	if cfg.Symbol == "" {
		return Config{}, fmt.Errorf("Пустой Symbol")
	}
	if cfg.Epic == "" {
		cfg.Epic = UnsetEpic
	}

	var err error
	if cfg.ATRStopPeriod, err = parsePeriod(r.ATRStopPeriod); err != nil {
		return Config{}, fmt.Errorf("%s: ATR Stop Loss Period: %w", cfg.Symbol, err)
	}
	if cfg.ATRProfitPeriod, err = parsePeriod(r.ATRProfitPeriod); err != nil {
		return Config{}, fmt.Errorf("%s: ATR Profit Target Period: %w", cfg.Symbol, err)
	}
	if cfg.ATRStopMultiple, err = parseNumber(r.ATRStopMultiple); err != nil {
		return Config{}, fmt.Errorf("%s: ATR Stop Loss Multiple: %w", cfg.Symbol, err)
	}
	if cfg.ATRProfitMultiple, err = parseNumber(r.ATRProfitMultiple); err != nil {
		return Config{}, fmt.Errorf("%s: ATR Profit Multiple: %w", cfg.Symbol, err)
	}
	if cfg.MaxPositionValue, err = parseNumber(r.MaxPositionValue); err != nil {
		return Config{}, fmt.Errorf("%s: Postion Size Max GBP: %w", cfg.Symbol, err)
	}
	if cfg.MaxPositionValue <= 0 {
		return Config{}, fmt.Errorf("%s: Postion Size Max GBP должен быть положительным", cfg.Symbol)
	}
	if cfg.OpeningPriceMultiple, err = parseNumber(r.OpeningPriceMultiple); err != nil {
		return Config{}, fmt.Errorf("%s: Opening Price Multiple: %w", cfg.Symbol, err)
	}
	return cfg, nil
}

func toRow(cfg Config) *row {
	return &row{
		Symbol:               cfg.Symbol,
		Epic:                 cfg.Epic,
		ATRStopPeriod:        strconv.Itoa(cfg.ATRStopPeriod),
		ATRStopMultiple:      strconv.FormatFloat(cfg.ATRStopMultiple, 'f', -1, 64),
		ATRProfitPeriod:      strconv.Itoa(cfg.ATRProfitPeriod),
		ATRProfitMultiple:    strconv.FormatFloat(cfg.ATRProfitMultiple, 'f', -1, 64),
		MaxPositionValue:     strconv.FormatFloat(cfg.MaxPositionValue, 'f', -1, 64),
		OpeningPriceMultiple: strconv.FormatFloat(cfg.OpeningPriceMultiple, 'f', -1, 64),
		NextDividendDate:     cfg.NextDividendDate,
	}
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// parsePeriod допускает дробную запись вида "4.0".
func parsePeriod(raw string) (int, error) {
	v, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *Store) logEntry() *logrus.Entry {
	return s.log.WithComponent("tickers")
}
