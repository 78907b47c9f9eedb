package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/crystal-mush/gorom/pkg/archive"
	"github.com/crystal-mush/gorom/pkg/boltstore"
	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/crypt"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/journal"
	"github.com/crystal-mush/gorom/pkg/memwatch"
	"github.com/crystal-mush/gorom/pkg/server"
	"github.com/crystal-mush/gorom/pkg/shell"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gorom [-conf <config>] [-data <dir>] [-port 4000]")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment variables (used as defaults when flags are not set):")
	fmt.Fprintln(os.Stderr, "  GOROM_CONF       Path to game config file (.yaml or legacy)")
	fmt.Fprintln(os.Stderr, "  GOROM_DATA       Catalog data directory")
	fmt.Fprintln(os.Stderr, "  GOROM_PORT       TCP port to listen on")
	fmt.Fprintln(os.Stderr, "  GOROM_JOURNAL    Path to the SQLite persistence journal")
	fmt.Fprintln(os.Stderr, "  GOROM_BOLT       Path to the bbolt snapshot store")
	fmt.Fprintln(os.Stderr, "  GOROM_CLEARTEXT  Set to 'false' to disable the plaintext listener")
	fmt.Fprintln(os.Stderr, "  GOROM_TLS        Set to 'true' to enable the TLS listener")
	fmt.Fprintln(os.Stderr, "  GOROM_WEB        Set to 'true' to enable the admin API and WebSocket")
	fmt.Fprintln(os.Stderr, "  GOROM_JWT_SECRET Secret for admin API tokens")
	fmt.Fprintln(os.Stderr, "  GOROM_RESTORE    Set to 'true' to boot from the bbolt snapshot")
	fmt.Fprintln(os.Stderr, "  GOROM_RESTORE_ARCHIVE Path to archive .tar.gz for pre-boot restore")
}

func main() {
	confFile := flag.String("conf", envDefault("GOROM_CONF", ""), "Path to game config file (env: GOROM_CONF)")
	dataDir := flag.String("data", envDefault("GOROM_DATA", ""), "Catalog data directory, overrides config (env: GOROM_DATA)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: GOROM_PORT)")
	journalPath := flag.String("journal", envDefault("GOROM_JOURNAL", ""), "Path to persistence journal (env: GOROM_JOURNAL)")
	boltPath := flag.String("bolt", envDefault("GOROM_BOLT", ""), "Path to bbolt snapshot store (env: GOROM_BOLT)")
	tlsCert := flag.String("tls-cert", envDefault("GOROM_TLS_CERT", ""), "Path to TLS certificate file (env: GOROM_TLS_CERT)")
	tlsKey := flag.String("tls-key", envDefault("GOROM_TLS_KEY", ""), "Path to TLS private key file (env: GOROM_TLS_KEY)")
	restore := flag.Bool("restore", os.Getenv("GOROM_RESTORE") == "true", "Boot from the bbolt snapshot instead of the catalog files (env: GOROM_RESTORE)")
	restoreArchive := flag.String("restore-archive", envDefault("GOROM_RESTORE_ARCHIVE", ""), "Restore from archive before boot (env: GOROM_RESTORE_ARCHIVE)")
	hashPass := flag.String("hash", "", "Print a bcrypt hash of the given password for an admin entry and exit")
	flag.Usage = usage
	flag.Parse()

	if *hashPass != "" {
		h, err := crypt.Hash(*hashPass)
		if err != nil {
			log.Fatalf("Error hashing password: %v", err)
		}
		fmt.Println(h)
		return
	}

	// Load game config if specified, otherwise use defaults
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}
	log.Printf("Welcome to %s (%s)", gc.MudName, server.VersionString())

	// Command-line flags and environment override config file values
	if *port == 0 {
		if p, err := strconv.Atoi(os.Getenv("GOROM_PORT")); err == nil {
			*port = p
		}
	}
	if *port != 0 {
		gc.Port = *port
	}
	if *dataDir != "" {
		gc.DataDir = *dataDir
	}
	if *journalPath != "" {
		gc.Journal = *journalPath
	}
	if *boltPath != "" {
		gc.BoltStore = *boltPath
	}
	if *tlsCert != "" {
		gc.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		gc.TLSKey = *tlsKey
	}
	if v := os.Getenv("GOROM_TLS"); v != "" {
		gc.TLS = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GOROM_CLEARTEXT"); v != "" {
		b := strings.EqualFold(v, "true")
		gc.Cleartext = &b
	}
	if v := os.Getenv("GOROM_WEB"); v != "" {
		gc.WebEnabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GOROM_JWT_SECRET"); v != "" {
		gc.JWTSecret = v
	}
	if err := gc.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := os.MkdirAll(gc.DataDir, 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	// Pre-boot restore from archive
	if *restoreArchive != "" {
		log.Printf("Restoring from archive: %s", *restoreArchive)
		res, err := archive.Restore(*restoreArchive, archive.Dest{
			DataDir:     gc.DataDir,
			BoltPath:    gc.BoltStore,
			JournalPath: gc.Journal,
		})
		if err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
		log.Printf("Restore complete: %d files from %s", res.FilesRestored, res.Manifest.Timestamp)
		for _, w := range res.Warnings {
			log.Printf("Restore warning: %s", w)
		}
	}

	guard, err := fileguard.New()
	if err != nil {
		log.Fatalf("Error reserving emergency descriptor: %v", err)
	}
	defer guard.Shutdown()

	metrics := server.NewMetrics()
	m := catalog.New(gc.CatalogConfig(), nil, guard)
	m.OnResult = metrics.PersistResult

	var jr *journal.Journal
	if gc.Journal != "" {
		jr, err = journal.Open(gc.Journal, gc.JournalTimeout)
		if err != nil {
			log.Fatalf("Error opening journal: %v", err)
		}
		defer jr.Close()
		m.Journal = jr
		log.Printf("Persistence journal: %s", gc.Journal)
	}

	var store *boltstore.Store
	if gc.BoltStore != "" {
		store, err = boltstore.Open(gc.BoltStore)
		if err != nil {
			log.Fatalf("Error opening snapshot store: %v", err)
		}
		defer store.Close()
	}

	bootCatalogs(m, store, *restore)

	sh := shell.New(shell.Config{
		MudName:        gc.MudName,
		Welcome:        gc.Welcome,
		Admins:         gc.Admins,
		SnapshotOnSave: gc.SnapshotOnSave,
		ArchiveDir:     gc.ArchiveDir,
		ArchiveRetain:  gc.ArchiveRetain,
		ConfPath:       *confFile,
	}, m)
	sh.Store = store
	sh.Journal = jr

	cfg := gc.ServerConfig()
	var tlsRes *server.TLSResult
	if gc.TLS || (gc.WebEnabled && (gc.WebDomain != "" || gc.TLSCert != "")) {
		tlsRes, err = server.SetupTLS(gc.TLSOptions())
		if err != nil {
			log.Fatalf("TLS setup failed: %v", err)
		}
		cfg.TLSConfig = tlsRes.Config
	}

	srv := server.New(cfg, sh)
	srv.Metrics = metrics
	srv.Guard = guard
	if cfg.WatchTicks > 0 {
		srv.Watches = memwatch.NewSet()
		memwatch.WatchValue(srv.Watches, "server config", &srv.Config)
		memwatch.WatchValue(srv.Watches, "shell config", &sh.Config)
		log.Printf("Memory watchpoints checked every %d ticks", cfg.WatchTicks)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if gc.WatchCatalogs {
		var history server.SaveHistory
		if jr != nil {
			history = jr
		}
		cw, err := server.WatchCatalogs(m, srv.Inbox(), history, func(k catalog.Kind, path string) {
			log.Printf("Catalog %s changed on disk: %s", k, path)
			sh.NotifyAdmins(fmt.Sprintf("[catalog] %s changed on disk; 'load %s' to pick it up.", path, k))
		})
		if err != nil {
			log.Printf("WARNING: %v", err)
		} else {
			defer cw.Close()
		}
	}

	var web *server.WebServer
	if gc.WebEnabled {
		secret := gc.JWTSecret
		if secret == "" {
			secret = server.GenerateJWTSecret()
			log.Printf("WARNING: jwt_secret not set; admin tokens will not survive a restart")
		}
		auth := server.NewAuthService(func(name, pw string) bool {
			hash, ok := gc.Admins[strings.ToLower(name)]
			return ok && crypt.Verify(pw, hash)
		}, secret, gc.JWTExpiry)

		webTLS := tlsRes
		if gc.WebDomain == "" && gc.TLSCert == "" {
			webTLS = nil
		}
		web = server.NewWebServer(srv, m, auth, server.WebConfig{
			Addr:        gc.WebAddr(),
			TLS:         webTLS,
			CORSOrigins: gc.CORSOrigins,
			RateLimit:   gc.WebRateLimit,
		})
		if jr != nil {
			web.Journal = jr
		}
		go func() {
			if err := web.Start(); err != nil {
				log.Printf("WARNING: web server: %v", err)
			}
		}()
	}

	if cfg.Addr != "" || cfg.TLSAddr != "" {
		if err := srv.Listen(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
	log.Printf("Starting %s: tick %s", gc.MudName, cfg.Tick)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server loop: %v", err)
	}

	if web != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := web.Stop(sctx); err != nil {
			log.Printf("WARNING: web shutdown: %v", err)
		}
		cancel()
	}
	log.Printf("%s shut down", gc.MudName)
}

// bootCatalogs fills m at startup: from the snapshot store when asked, from
// the catalog files when any exist, and otherwise from the starter world,
// which is then saved so the next boot finds files.
func bootCatalogs(m *catalog.Manager, store *boltstore.Store, fromSnapshot bool) {
	if fromSnapshot {
		if store == nil || !store.HasData() {
			log.Fatalf("Restore requested but no snapshot store has data")
		}
		if res := m.Restore(store); !res.IsOK() {
			log.Fatalf("Error restoring snapshot: %s", res)
		}
		log.Printf("Catalogs restored from %s", store.Path())
		return
	}

	found := false
	for _, k := range catalog.Kinds() {
		if m.Exists(k) {
			found = true
			break
		}
	}
	if !found {
		log.Printf("No catalog files found; seeding starter world")
		m.Catalogs = gamedb.Starter()
		if k, res := m.SaveAll(); !res.IsOK() {
			log.Fatalf("Error saving %s catalog: %s", k, res)
		}
		return
	}

	if k, res := m.LoadAll(); !res.IsOK() {
		log.Fatalf("Error loading %s catalog from %s: %s", k, m.Path(k), res)
	}
	for name, n := range m.Catalogs.Counts() {
		log.Printf("Loaded %d %s", n, name)
	}
}
