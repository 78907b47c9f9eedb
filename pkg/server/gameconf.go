package server

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/gorom/pkg/catalog"
)

// GameConf holds game-level configuration parameters.
// Supports both YAML (.yaml/.yml) and the legacy "key value" text format.
type GameConf struct {
	// --- Identity ---
	MudName string `yaml:"mud_name"`
	Welcome string `yaml:"welcome"`

	// --- Listeners ---
	Port      int    `yaml:"port"`
	Cleartext *bool  `yaml:"cleartext"`
	TLS       bool   `yaml:"tls"`
	TLSPort   int    `yaml:"tls_port"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`
	CertDir   string `yaml:"cert_dir"`
	WebDomain string `yaml:"web_domain"` // Let's Encrypt domain

	// --- Loop ---
	TickMS      int `yaml:"tick_ms"`
	ChunkSize   int `yaml:"chunk_size"`
	MaxInput    int `yaml:"max_input"`
	IdleTimeout int `yaml:"idle_timeout"` // seconds; 0 disables

	// --- Catalogs ---
	DataDir        string            `yaml:"data_dir"`
	JSONFormats    bool              `yaml:"json_formats"`
	CatalogFiles   map[string]string `yaml:"catalog_files"`
	WatchCatalogs  bool              `yaml:"watch_catalogs"`
	Journal        string            `yaml:"journal"` // SQLite path; empty disables
	JournalTimeout int               `yaml:"journal_timeout"`
	BoltStore      string            `yaml:"bolt_store"` // snapshot DB; empty disables
	SnapshotOnSave bool              `yaml:"snapshot_on_save"`
	ArchiveDir     string            `yaml:"archive_dir"`
	ArchiveRetain  int               `yaml:"archive_retain"` // 0 keeps every archive

	// --- Web ---
	WebEnabled   bool     `yaml:"web_enabled"`
	WebHost      string   `yaml:"web_host"`
	WebPort      int      `yaml:"web_port"`
	WebRateLimit int      `yaml:"web_rate_limit"`
	CORSOrigins  []string `yaml:"cors_origins"`
	JWTSecret    string   `yaml:"jwt_secret"`
	JWTExpiry    int      `yaml:"jwt_expiry"`

	// --- Security ---
	Admins map[string]string `yaml:"admins"` // name -> bcrypt or DES crypt hash

	// --- Debug ---
	DebugWatchTicks int    `yaml:"debug_watch_ticks"`
	CrashLog        string `yaml:"crash_log"`
}

// DefaultGameConf returns a GameConf with ROM-compatible defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		MudName:        "GoROM",
		Port:           4000,
		TLSPort:        4443,
		TickMS:         250,
		ChunkSize:      1024,
		MaxInput:       4096,
		IdleTimeout:    1800,
		DataDir:        "data",
		JournalTimeout: 5,
		ArchiveDir:     "backups",
		WebPort:        8443,
		WebRateLimit:   60,
		JWTExpiry:      86400,
		CrashLog:       "crash.log",
	}
}

// LoadGameConf loads a game config file. Format is auto-detected by extension:
//   - .yaml / .yml  -> YAML format
//   - .conf / other -> legacy text format
func LoadGameConf(path string) (*GameConf, error) {
	var gc *GameConf
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		gc, err = loadGameConfYAML(path)
	default:
		gc, err = loadGameConfLegacy(path)
	}
	if err != nil {
		return nil, err
	}
	if err := gc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return gc, nil
}

func loadGameConfYAML(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return gc, nil
}

func loadGameConfLegacy(path string) (*GameConf, error) {
	gc := DefaultGameConf()
	if err := gc.loadLegacyFile(path, 0); err != nil {
		return nil, err
	}
	return gc, nil
}

// loadLegacyFile reads "key value" lines. "include <file>" pulls in another
// file relative to this one; "admin <name> <hash>" and "catalog_file <kind>
// <file>" may repeat.
func (gc *GameConf) loadLegacyFile(path string, depth int) error {
	if depth > 10 {
		return fmt.Errorf("include depth exceeded (circular include?)")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, val := splitKeyVal(line)
		switch strings.ToLower(key) {
		case "include":
			inc := val
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(path), inc)
			}
			if err := gc.loadLegacyFile(inc, depth+1); err != nil {
				return err
			}

		// --- Identity ---
		case "mud_name":
			gc.MudName = val
		case "welcome":
			gc.Welcome = val

		// --- Listeners ---
		case "port":
			gc.Port = atoi(val, gc.Port)
		case "cleartext":
			v := parseBool(val)
			gc.Cleartext = &v
		case "tls":
			gc.TLS = parseBool(val)
		case "tls_port":
			gc.TLSPort = atoi(val, gc.TLSPort)
		case "tls_cert":
			gc.TLSCert = val
		case "tls_key":
			gc.TLSKey = val
		case "cert_dir":
			gc.CertDir = val
		case "web_domain":
			gc.WebDomain = val

		// --- Loop ---
		case "tick_ms", "pulse_ms":
			gc.TickMS = atoi(val, gc.TickMS)
		case "chunk_size":
			gc.ChunkSize = atoi(val, gc.ChunkSize)
		case "max_input":
			gc.MaxInput = atoi(val, gc.MaxInput)
		case "idle_timeout":
			gc.IdleTimeout = atoi(val, gc.IdleTimeout)

		// --- Catalogs ---
		case "data_dir":
			gc.DataDir = val
		case "json_formats":
			gc.JSONFormats = parseBool(val)
		case "catalog_file":
			kind, file := splitKeyVal(val)
			if gc.CatalogFiles == nil {
				gc.CatalogFiles = make(map[string]string)
			}
			gc.CatalogFiles[kind] = file
		case "watch_catalogs":
			gc.WatchCatalogs = parseBool(val)
		case "journal":
			gc.Journal = val
		case "journal_timeout":
			gc.JournalTimeout = atoi(val, gc.JournalTimeout)
		case "bolt_store":
			gc.BoltStore = val
		case "snapshot_on_save":
			gc.SnapshotOnSave = parseBool(val)
		case "archive_dir":
			gc.ArchiveDir = val
		case "archive_retain":
			gc.ArchiveRetain = atoi(val, gc.ArchiveRetain)

		// --- Web ---
		case "web_enabled":
			gc.WebEnabled = parseBool(val)
		case "web_host":
			gc.WebHost = val
		case "web_port":
			gc.WebPort = atoi(val, gc.WebPort)
		case "web_rate_limit":
			gc.WebRateLimit = atoi(val, gc.WebRateLimit)
		case "cors_origin":
			gc.CORSOrigins = append(gc.CORSOrigins, val)
		case "jwt_secret":
			gc.JWTSecret = val
		case "jwt_expiry":
			gc.JWTExpiry = atoi(val, gc.JWTExpiry)

		// --- Security ---
		case "admin":
			name, hash := splitKeyVal(val)
			if gc.Admins == nil {
				gc.Admins = make(map[string]string)
			}
			gc.Admins[name] = hash

		// --- Debug ---
		case "debug_watch_ticks":
			gc.DebugWatchTicks = atoi(val, gc.DebugWatchTicks)
		case "crash_log":
			gc.CrashLog = val

		default:
			log.Printf("WARNING: %s:%d: unknown config key %q", path, lineNo, key)
		}
	}
	return scanner.Err()
}

func splitKeyVal(line string) (string, string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

// Validate checks values that would otherwise fail late.
func (gc *GameConf) Validate() error {
	if gc.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", gc.TickMS)
	}
	for name := range gc.CatalogFiles {
		if _, ok := catalog.ParseKind(name); !ok {
			return fmt.Errorf("catalog_files: unknown catalog %q", name)
		}
	}
	if !gc.IsCleartext() && !gc.TLS && !gc.WebEnabled {
		return fmt.Errorf("no listener enabled")
	}
	return nil
}

// IsCleartext returns whether the cleartext listener is enabled.
// Defaults to true if not explicitly set.
func (gc *GameConf) IsCleartext() bool {
	if gc.Cleartext == nil {
		return true
	}
	return *gc.Cleartext
}

// ServerConfig derives the loop settings. TLSConfig is filled in by the
// caller after SetupTLS.
func (gc *GameConf) ServerConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = ""
	if gc.IsCleartext() {
		cfg.Addr = fmt.Sprintf(":%d", gc.Port)
	}
	if gc.TLS {
		cfg.TLSAddr = fmt.Sprintf(":%d", gc.TLSPort)
	}
	cfg.Tick = time.Duration(gc.TickMS) * time.Millisecond
	cfg.ChunkSize = gc.ChunkSize
	cfg.MaxInput = gc.MaxInput
	cfg.IdleTimeout = time.Duration(gc.IdleTimeout) * time.Second
	cfg.WatchTicks = gc.DebugWatchTicks
	cfg.CrashLog = gc.CrashLog
	return cfg
}

// CatalogConfig derives the catalog manager settings.
func (gc *GameConf) CatalogConfig() catalog.Config {
	cfg := catalog.Config{DataDir: gc.DataDir, JSON: gc.JSONFormats}
	for name, file := range gc.CatalogFiles {
		if k, ok := catalog.ParseKind(name); ok {
			if cfg.Files == nil {
				cfg.Files = make(map[catalog.Kind]string)
			}
			cfg.Files[k] = file
		}
	}
	return cfg
}

// TLSOptions derives certificate settings.
func (gc *GameConf) TLSOptions() TLSOptions {
	return TLSOptions{Domain: gc.WebDomain, CertFile: gc.TLSCert, KeyFile: gc.TLSKey, CertDir: gc.CertDir}
}

// WebAddr is the admin API listen address.
func (gc *GameConf) WebAddr() string {
	return fmt.Sprintf("%s:%d", gc.WebHost, gc.WebPort)
}

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true" || s == "1" || s == "on"
}
