package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailbadge/internal/auth"
	"github.com/nhle/mailbadge/internal/badge"
	"github.com/nhle/mailbadge/internal/control"
	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
	"github.com/nhle/mailbadge/internal/provider/gmail"
	"github.com/nhle/mailbadge/internal/provider/yandex"
	"github.com/nhle/mailbadge/internal/store"
	"github.com/nhle/mailbadge/internal/sync"
	"github.com/nhle/mailbadge/internal/token"
)

const appName = "mailbadge"

func main() {
	zapCfg := zap.NewDevelopmentConfig()
	level := zap.NewAtomicLevel()
	level.SetLevel(zap.InfoLevel)
	zapCfg.Level = level
	logger, _ := zapCfg.Build()
	defer logger.Sync()
	log := logger.Sugar()

	var (
		configPath string
		dbPath     string
		socketPath string
		headless   bool
		debug      bool
	)
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "configuration file")
	flag.StringVar(&dbPath, "db", "", "database file (overrides configuration)")
	flag.StringVar(&socketPath, "socket", "", "control socket path (overrides configuration)")
	flag.BoolVar(&headless, "headless", false, "disable the desktop badge")
	flag.BoolVar(&debug, "d", false, "debug logging")
	flag.Parse()

	if debug {
		level.SetLevel(zap.DebugLevel)
	}

	log.Infof("Starting %s", appName)

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Error reading configuration file: %s", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		log.Infof("Signal %s received, shutting down", s.String())
		cancel()
	}()

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Error opening database: %s", err)
	}
	defer db.Close()

	tokens := token.NewKeyringStore(filepath.Dir(configPath))

	flow, err := auth.NewLoopbackFlow()
	if err != nil {
		log.Fatalf("Error starting consent listener: %s", err)
	}
	defer flow.Close()

	registry := provider.NewRegistry()

	gmailCfg := provider.GmailConfig(cfg.Providers["gmail"].ClientID)
	gmailEngine := auth.NewEngine(gmailCfg, tokens, flow, log)
	gmailProvider, err := gmail.New(ctx, gmailCfg, gmailEngine, db, log)
	if err != nil {
		log.Fatalf("Error initializing gmail provider: %s", err)
	}
	registry.Register(gmailProvider)

	yandexCfg := provider.YandexConfig(cfg.Providers["yandex"].ClientID)
	yandexEngine := auth.NewEngine(yandexCfg, tokens, flow, log)
	registry.Register(yandex.New(yandexCfg, yandexEngine, log))

	var b badge.Badge = badge.Nop{}
	if cfg.BadgeEnabled && !headless {
		b = badge.NewNotify(log)
	}

	orch := sync.NewOrchestrator(db, registry, b, log)

	settings, err := db.GetSettings(ctx)
	if err != nil {
		log.Warnf("Error reading settings, using defaults: %s", err)
		settings = model.DefaultSettings()
	}
	interval := time.Duration(settings.UpdateIntervalMinutes) * time.Minute
	scheduler := sync.NewScheduler(orch, interval, log)

	srv, err := control.NewServer(cfg.SocketPath, orch, scheduler, log)
	if err != nil {
		log.Fatalf("Error binding control socket: %s", err)
	}
	defer srv.Close()
	log.Infof("Control socket listening on %s", srv.Addr())

	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Errorf("Control server stopped: %s", err)
			cancel()
		}
	}()

	// The first refresh runs before the ticker so the badge is current at
	// startup. A failure here is reported on the badge but does not stop
	// the daemon.
	if _, err := orch.UpdateAll(ctx); err != nil {
		log.Errorf("Initial update failed: %s", err)
	}

	scheduler.Run(ctx)
	log.Infof("%s stopped", appName)
}
