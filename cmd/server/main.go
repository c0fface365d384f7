package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/handlers"
	"ledger/internal/ids"
	"ledger/internal/logging"
	"ledger/internal/money"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/store/memory"
	"ledger/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config.Load")
	}
	log := logging.Setup(cfg.LogLevel)

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("openStore")
	}
	defer closeStore()

	hub := websocket.NewHub()
	ledger := services.NewLedgerService(st, ids.NewGenerator(), hub, log)
	queries := services.NewQueryService(st, log)

	if cfg.Seed.Enabled() {
		if err := seed(context.Background(), cfg.Seed, ledger, log); err != nil {
			log.WithError(err).Fatal("seed")
		}
	}

	handler := handlers.New(cfg, ledger, queries, services.NewProfileService(st, log), st.Credentials(), hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": server.Addr, "store": cfg.StoreDriver, "env": cfg.AppEnv}).Info("Server.Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server.ListenAndServe")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server.Shutdown")
	}
	log.Info("Server.Stopped")
}

func openStore(cfg config.Config, log *logrus.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("Store.Memory: balances are lost on restart")
		return memory.New(), func() {}, nil
	}
	database, err := db.Connect(cfg.DatabaseURL, cfg.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	runner := db.NewTxRunner(database, cfg.TxAttempts)
	return store.NewPostgresStore(database, runner), func() { _ = database.Close() }, nil
}

func seed(ctx context.Context, cfg config.Seed, ledger *services.LedgerService, log *logrus.Logger) error {
	opening, err := money.ParseMinor(cfg.OpeningDeposit)
	if err != nil {
		return err
	}
	req := services.RegisterRequest{
		AccountNumber:  cfg.AccountNumber,
		OpeningDeposit: opening,
		Profile: &services.ProfileFields{
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Address:   cfg.Address,
		},
	}
	if cfg.Password != "" {
		hash, err := auth.HashPassword(cfg.Password)
		if err != nil {
			return err
		}
		req.Credential = &services.CredentialRequest{Email: cfg.Email, PasswordHash: hash, IsAdmin: true}
	}
	account, created, err := ledger.EnsureAccount(ctx, req)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"account_id":     account.ID,
		"account_number": account.AccountNumber,
		"created":        created,
	}).Info("Seed.Complete")
	return nil
}
