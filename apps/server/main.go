package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"royalcourt/apps/server/internal/config"
	"royalcourt/apps/server/internal/gateway"
	"royalcourt/apps/server/internal/ledger"
	"royalcourt/apps/server/internal/lobby"
	"royalcourt/apps/server/internal/room"
	"royalcourt/apps/server/internal/store"
	"royalcourt/court/npc"
)

const (
	reapInterval    = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("[Server] Failed to load config: %v", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("[Server] Failed to init logger: %v", err)
	}

	st, storeMode, err := store.New(store.Options{
		Mode:          cfg.StoreMode,
		SQLitePath:    cfg.SQLitePath,
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RoomTTL:       cfg.RoomIdleTTL,
	}, log)
	if err != nil {
		log.Fatalf("[Server] Failed to init room store: %v", err)
	}
	defer st.Close()

	ledgerService, ledgerMode, err := ledger.NewService(ledger.Options{
		Mode:        cfg.LedgerMode,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	registry := npc.DefaultRegistry()
	if cfg.PersonasFile != "" {
		if err := registry.LoadFromFile(cfg.PersonasFile); err != nil {
			log.Fatalf("[Server] Failed to load personas: %v", err)
		}
	}
	bots := npc.NewManager(registry, npc.ManagerConfig{
		BaseDelay: cfg.BotThinkDelay,
		Jitter:    cfg.BotThinkJitter,
	}, log)

	lby := lobby.New(st, lobby.Config{
		Room: room.Options{
			NPC:      bots,
			Ledger:   ledgerService,
			Log:      log,
			LeaseTTL: cfg.DriverLeaseTTL,
		},
		IdleTTL: cfg.RoomIdleTTL,
	})
	defer lby.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go lby.RunReaper(ctx, reapInterval)

	gw := gateway.New(lby, log)
	historyHTTP := ledger.NewHTTPHandler(ledgerService, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	historyHTTP.RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("[Server] Shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"store":    storeMode,
		"ledger":   ledgerMode,
		"personas": registry.Count(),
	}).Infof("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
	log.Info("[Server] Stopped")
}
