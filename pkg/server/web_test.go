package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/gamedb"
)

// runningServer starts a loop with no listeners so inbox calls are served.
func runningServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = ""
	cfg.Tick = 5 * time.Millisecond
	cfg.CrashLog = ""
	s := New(cfg, newFakeWorld())
	s.Metrics = NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func newTestWeb(t *testing.T) (*WebServer, *catalog.Manager) {
	t.Helper()
	s := runningServer(t)
	g, err := fileguard.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Shutdown)
	m := catalog.New(catalog.Config{DataDir: t.TempDir()}, gamedb.Starter(), g)
	m.OnResult = s.Metrics.PersistResult
	auth := NewAuthService(func(name, pw string) bool { return name == "admin" && pw == "secret" }, "test-secret", 0)
	return NewWebServer(s, m, auth, WebConfig{RateLimit: 1000}), m
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, "POST", "/api/login", "", `{"name":"admin","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out["token"]
}

func TestWebLogin(t *testing.T) {
	ws, _ := newTestWeb(t)
	h := ws.Handler()
	if rec := do(t, h, "POST", "/api/login", "", `{"name":"admin","password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/login", "", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", rec.Code)
	}
	tok := login(t, h)
	if rec := do(t, h, "POST", "/api/refresh", tok, ""); rec.Code != http.StatusOK {
		t.Errorf("refresh status = %d", rec.Code)
	}
}

func TestWebCatalogs(t *testing.T) {
	ws, m := newTestWeb(t)
	h := ws.Handler()
	if rec := do(t, h, "GET", "/api/catalogs", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}
	tok := login(t, h)

	rec := do(t, h, "GET", "/api/catalogs", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var infos []CatalogInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != len(catalog.Kinds()) {
		t.Fatalf("got %d catalogs, want %d", len(infos), len(catalog.Kinds()))
	}
	for _, info := range infos {
		if info.Name == "races" && info.Records == 0 {
			t.Error("races reported empty")
		}
	}

	rec = do(t, h, "POST", "/api/catalogs/races/save", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save status %d: %s", rec.Code, rec.Body)
	}
	var res ResultJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Status != "ok" {
		t.Errorf("save result = %+v", res)
	}
	if !m.Exists(catalog.Races) {
		t.Error("races file not written")
	}

	rec = do(t, h, "POST", "/api/catalogs/races/load", tok, `{"file":"missing.olc"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing file status = %d", rec.Code)
	}
	res = ResultJSON{}
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.OK || res.Status != "I/O error" {
		t.Errorf("missing file result = %+v", res)
	}

	if rec := do(t, h, "POST", "/api/catalogs/nope/save", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown catalog status = %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/catalogs/races/delete", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown op status = %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/api/journal", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("journal without a journal status = %d", rec.Code)
	}

	rec = do(t, h, "GET", "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"gorom_ticks_total", `gorom_persist_results_total{catalog="races",op="save",status="ok"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestWebHealth(t *testing.T) {
	ws, _ := newTestWeb(t)
	rec := do(t, ws.Handler(), "GET", "/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) ||
		!strings.Contains(rec.Body.String(), VersionString()) {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestWebSocketSession(t *testing.T) {
	ws, _ := newTestWeb(t)
	hs := httptest.NewServer(ws.Handler())
	defer hs.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))

	_, msg, err := c.ReadMessage()
	if err != nil || !bytes.Contains(msg, []byte("Welcome.")) {
		t.Fatalf("greeting = %q, %v", msg, err)
	}
	if err := c.WriteMessage(websocket.TextMessage, []byte("quit")); err != nil {
		t.Fatal(err)
	}
	_, msg, err = c.ReadMessage()
	if err != nil || string(msg) != "Bye.\r\n" {
		t.Fatalf("reply = %q, %v", msg, err)
	}
	if _, _, err := c.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestWSStreamFraming(t *testing.T) {
	got := make(chan string, 1)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			got <- err.Error()
			return
		}
		data, _ := io.ReadAll(newWSStream(c))
		got <- string(data)
	}))
	defer hs.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.WriteMessage(websocket.TextMessage, []byte("look"))
	c.WriteMessage(websocket.TextMessage, []byte(""))
	c.WriteMessage(websocket.TextMessage, []byte("say hi\n"))
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case s := <-got:
		if s != "look\nsay hi\n" {
			t.Errorf("stream read %q", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
	c.Close()
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(2)
	now := time.Now()
	if !l.allow("10.0.0.1", now) || !l.allow("10.0.0.1", now) {
		t.Fatal("burst refused")
	}
	if l.allow("10.0.0.1", now) {
		t.Error("third request in the same instant allowed")
	}
	if !l.allow("10.0.0.2", now) {
		t.Error("limit shared across clients")
	}
	if !l.allow("10.0.0.1", now.Add(31*time.Second)) {
		t.Error("bucket did not refill")
	}
	l.clients["10.0.0.2"].seen = now.Add(-time.Hour)
	l.cleanup(10 * time.Minute)
	if _, ok := l.clients["10.0.0.2"]; ok {
		t.Error("idle client not cleaned up")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := rateLimitMiddleware(newIPLimiter(1), ok)
	if rec := do(t, h, "GET", "/", "", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/", "", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d", rec.Code)
	}
}

func TestAuthTokens(t *testing.T) {
	a := NewAuthService(func(n, p string) bool { return n == "root" && p == "pw" }, "k1", 60)
	if _, err := a.Login("root", "bad"); err == nil {
		t.Error("bad password accepted")
	}
	tok, err := a.Login("root", "pw")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.ValidateToken(tok)
	if err != nil || claims.Admin != "root" {
		t.Fatalf("ValidateToken = %+v, %v", claims, err)
	}
	other := NewAuthService(nil, "k2", 60)
	if _, err := other.ValidateToken(tok); err == nil {
		t.Error("token accepted under a different key")
	}
	if _, err := a.ValidateToken(tok + "x"); err == nil {
		t.Error("tampered token accepted")
	}
	expired, _ := a.sign("root", time.Now().Add(-2*time.Hour))
	if _, err := a.RefreshToken(expired); err == nil {
		t.Error("expired token refreshed")
	}
	if s := GenerateJWTSecret(); len(s) != 64 {
		t.Errorf("secret length %d", len(s))
	}
}
