package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/journal"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// WebConfig holds settings for the admin HTTP API and WebSocket transport.
type WebConfig struct {
	Addr        string
	TLS         *TLSResult // nil serves plain HTTP
	CORSOrigins []string   // allowed WebSocket origins; empty allows any
	RateLimit   int        // requests per minute per IP
}

// JournalReader lists recent persistence operations.
type JournalReader interface {
	Recent(n int) ([]journal.Entry, error)
}

// WebServer serves /metrics, the admin catalog API and /ws. Handlers never
// touch world state directly; catalog work runs on the loop via the inbox.
type WebServer struct {
	srv      *Server
	catalogs *catalog.Manager
	Journal  JournalReader
	auth     *AuthService
	limiter  *ipLimiter
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	httpSrv  *http.Server
	cfg      WebConfig
	done     chan struct{}
}

// NewWebServer creates the HTTP front end for srv.
func NewWebServer(srv *Server, cats *catalog.Manager, auth *AuthService, cfg WebConfig) *WebServer {
	ws := &WebServer{
		srv:      srv,
		catalogs: cats,
		auth:     auth,
		limiter:  newIPLimiter(cfg.RateLimit),
		mux:      http.NewServeMux(),
		cfg:      cfg,
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.registerRoutes()
	ws.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLS != nil {
		ws.httpSrv.TLSConfig = cfg.TLS.Config
	}
	return ws
}

// Handler returns the routed, rate-limited handler.
func (ws *WebServer) Handler() http.Handler {
	return rateLimitMiddleware(ws.limiter, ws.mux)
}

func (ws *WebServer) registerRoutes() {
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	if ws.srv.Metrics != nil {
		ws.mux.Handle("GET /metrics", ws.srv.Metrics.Handler())
	}
	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)

	ws.mux.HandleFunc("POST /api/login", ws.handleLogin)
	ws.mux.HandleFunc("POST /api/refresh", ws.handleRefresh)
	ws.mux.Handle("GET /api/catalogs", authMiddleware(ws.auth, http.HandlerFunc(ws.handleCatalogs)))
	ws.mux.Handle("POST /api/catalogs/{kind}/{op}", authMiddleware(ws.auth, http.HandlerFunc(ws.handleCatalogOp)))
	ws.mux.Handle("GET /api/journal", authMiddleware(ws.auth, http.HandlerFunc(ws.handleJournal)))
}

// Start serves until Stop. Let's Encrypt setups also answer ACME challenges
// on port 80.
func (ws *WebServer) Start() error {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ws.limiter.cleanup(10 * time.Minute)
			case <-ws.done:
				return
			}
		}
	}()

	var err error
	if ws.cfg.TLS != nil {
		if m := ws.cfg.TLS.AutocertMgr; m != nil {
			go func() {
				if err := http.ListenAndServe(":80", m.HTTPHandler(nil)); err != nil {
					log.Printf("web: ACME HTTP listener: %v", err)
				}
			}()
		}
		log.Printf("web: listening (HTTPS) on %s", ws.cfg.Addr)
		err = ws.httpSrv.ListenAndServeTLS("", "")
	} else {
		log.Printf("web: listening (HTTP) on %s", ws.cfg.Addr)
		err = ws.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down.
func (ws *WebServer) Stop(ctx context.Context) error {
	close(ws.done)
	return ws.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var ticks uint64
	var conns int
	err := ws.srv.Inbox().Call(r.Context(), func() {
		ticks, conns = ws.srv.Ticks(), len(ws.srv.Conns())
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok", "version": VersionString(), "ticks": ticks, "connections": conns,
	})
}

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (ws *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		log.Printf("web: failed admin login for %q from %s", req.Name, r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	log.Printf("web: admin %s logged in from %s", req.Name, r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	fresh, err := ws.auth.RefreshToken(tok)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": fresh})
}

// CatalogInfo describes one catalog for the admin API.
type CatalogInfo struct {
	Name    string   `json:"name"`
	File    string   `json:"file"`
	Records int      `json:"records"`
	Formats []string `json:"formats"`
}

func (ws *WebServer) handleCatalogs(w http.ResponseWriter, r *http.Request) {
	var out []CatalogInfo
	err := ws.srv.Inbox().Call(r.Context(), func() {
		counts := ws.catalogs.Catalogs.Counts()
		for _, k := range catalog.Kinds() {
			out = append(out, CatalogInfo{
				Name:    k.String(),
				File:    ws.catalogs.Path(k),
				Records: counts[k.String()],
				Formats: ws.catalogs.Formats(k),
			})
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ResultJSON is a persist.Result on the wire.
type ResultJSON struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func resultJSON(res persist.Result) ResultJSON {
	out := ResultJSON{OK: res.IsOK(), Status: res.Status.String(), Message: res.Message}
	if res.Line > 0 {
		out.Line = res.Line
	}
	return out
}

func (ws *WebServer) handleCatalogOp(w http.ResponseWriter, r *http.Request) {
	kind, ok := catalog.ParseKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no catalog %q", r.PathValue("kind")))
		return
	}
	var body struct {
		File string `json:"file"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var op func(catalog.Kind, string) persist.Result
	switch r.PathValue("op") {
	case "save":
		op = ws.catalogs.Save
	case "load":
		op = ws.catalogs.Load
	default:
		writeError(w, http.StatusNotFound, "unknown operation")
		return
	}

	var res persist.Result
	err := ws.srv.Inbox().Call(r.Context(), func() { res = op(kind, body.File) })
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		log.Printf("web: %s %s %s by %s: %s", r.PathValue("op"), kind, body.File, claims.Admin, res)
	}
	status := http.StatusOK
	if !res.IsOK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resultJSON(res))
}

func (ws *WebServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	if ws.Journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	entries, err := ws.Journal.Recent(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleWebSocket upgrades the request and queues the socket for the loop
// like any accepted connection.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	in := incoming{s: newWSStream(c), t: TransportWebSocket, addr: r.RemoteAddr}
	if !ws.srv.enqueue(r.Context(), in) {
		c.Close()
	}
}
