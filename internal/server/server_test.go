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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeEngine struct {
	result   engine.Result
	payloads []alert.Payload
	status   engine.PositionStatus
	statErr  error
	posErr   error
	history  engine.History
	trades   []engine.TradeRecord
	resets   int
	canceled string
}

func (f *fakeEngine) ProcessAlert(_ context.Context, p alert.Payload) engine.Result {
	f.payloads = append(f.payloads, p)
	return f.result
}

func (f *fakeEngine) PositionStatus(_ context.Context, ref, ticker string) (engine.PositionStatus, error) {
	if ref == "" && ticker == "" {
		return engine.PositionStatus{}, engine.ErrMissingReference
	}
	return f.status, f.statErr
}

func (f *fakeEngine) Positions(context.Context) ([]models.Position, error) {
	return []models.Position{{DealID: "D1"}}, f.posErr
}

func (f *fakeEngine) Transactions(context.Context, int, int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeEngine) Activities(context.Context, int, int) ([]models.Activity, error) {
	return nil, nil
}

func (f *fakeEngine) History(_ context.Context, days, _ int) (engine.History, error) {
	h := f.history
	h.Days = days
	return h, nil
}

func (f *fakeEngine) WorkingOrders(context.Context) ([]models.WorkingOrder, error) {
	return nil, nil
}

func (f *fakeEngine) CancelOrder(_ context.Context, dealID string) (models.OrderResult, error) {
	f.canceled = dealID
	return models.OrderResult{Status: models.DealAccepted, DealID: dealID}, nil
}

func (f *fakeEngine) TodayTrades() []engine.TradeRecord {
	return f.trades
}

func (f *fakeEngine) ResetDailyTrades() {
	f.resets++
}

type fakeTickers struct {
	configs []tickers.Config
	err     error
	upload  string
}

func (f *fakeTickers) All() []tickers.Config {
	return f.configs
}

func (f *fakeTickers) Len() int {
	return len(f.configs)
}

func (f *fakeTickers) Replace(r io.Reader) (int, error) {
	data, _ := io.ReadAll(r)
	f.upload = string(data)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

type fakeUsers struct {
	users     map[string]auth.User
	passwords map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: map[string]auth.User{
			"admin": {Username: "admin", Role: auth.RoleAdmin},
			"user":  {Username: "user", Role: auth.RoleUser},
		},
		passwords: map[string]string{"admin": "pw", "user": "pw"},
	}
}

func (f *fakeUsers) Authenticate(username, password string) (auth.User, error) {
	u, ok := f.users[username]
	if !ok || password != f.passwords[username] {
		return auth.User{}, auth.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) Add(username, password, role string) error {
	if _, ok := f.users[username]; ok {
		return auth.ErrUserExists
	}
	f.users[username] = auth.User{Username: username, Role: role}
	f.passwords[username] = password
	return nil
}

func (f *fakeUsers) ChangePassword(username, password string) error {
	if _, ok := f.users[username]; !ok {
		return auth.ErrUserNotFound
	}
	f.passwords[username] = password
	return nil
}

func (f *fakeUsers) List() []auth.User {
	out := make([]auth.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out
}

type fakeFeed struct {
	mu     sync.Mutex
	events []stream.EventType
}

func (f *fakeFeed) Publish(t stream.EventType, _ any) {
	f.mu.Lock()
	f.events = append(f.events, t)
	f.mu.Unlock()
}

func (f *fakeFeed) Serve(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusTeapot)
	return nil
}

type fakeDividends struct{}

func (fakeDividends) Run(context.Context) ([]dividend.Entry, error) {
	return []dividend.Entry{{Symbol: "LSE_DLY:VOD", YahooSymbol: "VOD.L"}}, nil
}

type testServer struct {
	*Server
	engine  *fakeEngine
	tickers *fakeTickers
	feed    *fakeFeed
	issuer  *auth.Issuer
	users   *fakeUsers
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()
	ts := &testServer{
		engine:  &fakeEngine{result: engine.Result{Status: engine.StatusSuccess, Ticker: "LSE_DLY:SRP"}},
		tickers: &fakeTickers{configs: []tickers.Config{{Symbol: "LSE_DLY:SRP"}}},
		feed:    &fakeFeed{},
		issuer:  auth.NewIssuer("s3cret", time.Hour),
		users:   newFakeUsers(),
	}
	ts.Server = New(cfg, Deps{
		Engine:  ts.engine,
		Tickers: ts.tickers,
		Users:     ts.users,
		Issuer:    ts.issuer,
		Feed:      ts.feed,
		Dividends: fakeDividends{},
	}, logger.Discard())
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := ts.issuer.Issue(auth.User{Username: role, Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func authed(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || decode(t, w)["ticker_count"].(float64) != 1 {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookPlainText(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("LSE_DLY:SRP UP 189.8 1 2 3 4 5 6 7 8 9 10"))
	req.Header.Set("Content-Type", "text/plain")
	w := ts.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if len(ts.engine.payloads) != 1 || !strings.HasPrefix(ts.engine.payloads[0].Message, "LSE_DLY:SRP") {
		t.Errorf("alert text not passed through: %+v", ts.engine.payloads)
	}
	if len(ts.feed.events) != 1 || ts.feed.events[0] != stream.EventTypeAlert {
		t.Errorf("result must be published, got %v", ts.feed.events)
	}
}

func TestWebhookJSONTestMode(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	body := `{"message":"LSE_DLY:SRP UP 189.8 1 2 3 4 5 6 7 8 9 10","test_mode":true}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := ts.do(req); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !ts.engine.payloads[0].TestMode {
		t.Error("test_mode must be forwarded")
	}
}

func TestWebhookEmptyBodyIsParseError(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	w := ts.do(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("  ")))
	if w.Code != http.StatusBadRequest || decode(t, w)["kind"] != string(engine.KindParse) {
		t.Errorf("expected parse error, got %d %s", w.Code, w.Body.String())
	}
	if len(ts.engine.payloads) != 0 {
		t.Error("engine must not be called")
	}
}

func TestWebhookToken(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{WebhookToken: "abc"})
	alertText := "LSE_DLY:SRP UP 189.8 1 2 3 4 5 6 7 8 9 10"

	w := ts.do(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(alertText)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token must be rejected, got %d", w.Code)
	}
	w = ts.do(httptest.NewRequest(http.MethodPost, "/webhook?token=abc", strings.NewReader(alertText)))
	if w.Code != http.StatusOK {
		t.Errorf("valid token must pass, got %d", w.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind engine.Kind
		want int
	}{
		{engine.KindParse, http.StatusBadRequest},
		{engine.KindValidation, http.StatusConflict},
		{engine.KindConfiguration, http.StatusUnprocessableEntity},
		{engine.KindStale, http.StatusUnprocessableEntity},
		{engine.KindCalculation, http.StatusUnprocessableEntity},
		{engine.KindQuoteUnavailable, http.StatusServiceUnavailable},
		{engine.KindBroker, http.StatusBadGateway},
	}
	for _, tc := range cases {
		got := statusFor(engine.Result{Status: engine.StatusError, Kind: tc.kind})
		if got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.kind, got, tc.want)
		}
	}
	if statusFor(engine.Result{Status: engine.StatusSuccess}) != http.StatusOK {
		t.Error("success must be 200")
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	for _, path := range []string{"/positions", "/position/today", "/history/all", "/tickers", "/logs", "/ws"} {
		if w := ts.do(httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestLoginSetsCookie(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"user","password":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := ts.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"user","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatal("expected an HttpOnly session cookie")
	}

	positions := httptest.NewRequest(http.MethodGet, "/positions", nil)
	positions.AddCookie(session)
	if w := ts.do(positions); w.Code != http.StatusOK {
		t.Errorf("cookie must grant access, got %d", w.Code)
	}
}

func TestPositionStatusErrors(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	tok := ts.token(t, auth.RoleUser)

	w := ts.do(authed(httptest.NewRequest(http.MethodGet, "/position/status", nil), tok))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing params: expected 400, got %d", w.Code)
	}

	ts.engine.statErr = engine.ErrNoTradeToday
	w = ts.do(authed(httptest.NewRequest(http.MethodGet, "/position/status?ticker=LSE_DLY:SRP", nil), tok))
	if w.Code != http.StatusNotFound {
		t.Errorf("no trade: expected 404, got %d", w.Code)
	}

	ts.engine.statErr = nil
	ts.engine.status = engine.PositionStatus{Status: engine.PositionOpen, DealReference: "REF1"}
	w = ts.do(authed(httptest.NewRequest(http.MethodGet, "/position/status?reference=REF1", nil), tok))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"position_status":"OPEN"`) {
		t.Errorf("unexpected status response %d %s", w.Code, w.Body.String())
	}
}

func TestPositionsBrokerFailure(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	ts.engine.posErr = errors.New("down")
	w := ts.do(authed(httptest.NewRequest(http.MethodGet, "/positions", nil), ts.token(t, auth.RoleUser)))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestTodayTradesAndHistoryParams(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	tok := ts.token(t, auth.RoleUser)
	ts.engine.trades = []engine.TradeRecord{{
		Ticker: "LSE_DLY:SRP",
		Epic:   "KA.D.SRP.DAILY.IP",
		Params: engine.TradeParameters{Direction: models.OrderSideSell, EntryPrice: 191.7, PositionSize: 5.22},
		Result: models.OrderResult{Status: models.DealAccepted, DealReference: "REF1"},
	}}

	w := ts.do(authed(httptest.NewRequest(http.MethodGet, "/position/today", nil), tok))
	out := decode(t, w)
	if out["trade_count"].(float64) != 1 || !strings.Contains(w.Body.String(), `"deal_reference":"REF1"`) {
		t.Errorf("unexpected today response %s", w.Body.String())
	}

	w = ts.do(authed(httptest.NewRequest(http.MethodGet, "/history/all?days=3", nil), tok))
	if !strings.Contains(w.Body.String(), `"days_history":3`) {
		t.Errorf("days must be forwarded: %s", w.Body.String())
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	user := ts.token(t, auth.RoleUser)
	admin := ts.token(t, auth.RoleAdmin)

	if w := ts.do(authed(httptest.NewRequest(http.MethodDelete, "/orders/DIA1", nil), user)); w.Code != http.StatusForbidden {
		t.Errorf("user cancel: expected 403, got %d", w.Code)
	}
	if w := ts.do(authed(httptest.NewRequest(http.MethodDelete, "/orders/DIA1", nil), admin)); w.Code != http.StatusOK || ts.engine.canceled != "DIA1" {
		t.Errorf("admin cancel: %d, canceled %q", w.Code, ts.engine.canceled)
	}
	if w := ts.do(authed(httptest.NewRequest(http.MethodPost, "/position/today/reset", nil), admin)); w.Code != http.StatusOK || ts.engine.resets != 1 {
		t.Errorf("reset: %d, resets %d", w.Code, ts.engine.resets)
	}
	if w := ts.do(authed(httptest.NewRequest(http.MethodPost, "/dividends/refresh", nil), admin)); w.Code != http.StatusOK {
		t.Errorf("dividends: %d", w.Code)
	}
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	user := ts.token(t, auth.RoleUser)
	admin := ts.token(t, auth.RoleAdmin)

	newUser := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"username":"ops","password":"x1","role":"user"}`))
		req.Header.Set("Content-Type", "application/json")
		return req
	}
	if w := ts.do(authed(newUser(), user)); w.Code != http.StatusForbidden {
		t.Errorf("user add: expected 403, got %d", w.Code)
	}
	if w := ts.do(authed(newUser(), admin)); w.Code != http.StatusCreated {
		t.Fatalf("admin add: expected 201, got %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(authed(newUser(), admin)); w.Code != http.StatusConflict {
		t.Errorf("duplicate add: expected 409, got %d", w.Code)
	}

	bad := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"username":"x","password":"y","role":"root"}`))
	bad.Header.Set("Content-Type", "application/json")
	if w := ts.do(authed(bad, admin)); w.Code != http.StatusBadRequest {
		t.Errorf("unknown role: expected 400, got %d", w.Code)
	}

	w := ts.do(authed(httptest.NewRequest(http.MethodGet, "/users", nil), admin))
	if w.Code != http.StatusOK || len(decode(t, w)["users"].([]any)) != 3 {
		t.Errorf("list: %d %s", w.Code, w.Body.String())
	}

	pw := httptest.NewRequest(http.MethodPost, "/password", strings.NewReader(`{"password":"fresh"}`))
	pw.Header.Set("Content-Type", "application/json")
	if w := ts.do(authed(pw, user)); w.Code != http.StatusOK {
		t.Fatalf("change password: %d %s", w.Code, w.Body.String())
	}
	if ts.users.passwords["user"] != "fresh" {
		t.Errorf("password not changed for the session user: %v", ts.users.passwords)
	}
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/tickers/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadTickers(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	admin := ts.token(t, auth.RoleAdmin)

	w := ts.do(authed(uploadRequest(t, "tickers.csv", "Symbol,Epic\n"), admin))
	if w.Code != http.StatusOK || decode(t, w)["ticker_count"].(float64) != 3 {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	if ts.tickers.upload != "Symbol,Epic\n" {
		t.Errorf("file content not forwarded: %q", ts.tickers.upload)
	}
	if ts.feed.events[len(ts.feed.events)-1] != stream.EventTypeTickers {
		t.Error("upload must be published")
	}

	if w := ts.do(authed(uploadRequest(t, "tickers.txt", "x"), admin)); w.Code != http.StatusBadRequest {
		t.Errorf("non-csv: expected 400, got %d", w.Code)
	}

	ts.tickers.err = tickers.ErrEmptyTable
	if w := ts.do(authed(uploadRequest(t, "tickers.csv", "x"), admin)); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty table: expected 422, got %d", w.Code)
	}
}

func TestFeedDelegatesToStream(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	w := ts.do(authed(httptest.NewRequest(http.MethodGet, "/ws", nil), ts.token(t, auth.RoleUser)))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected the feed handler to run, got %d", w.Code)
	}
}
