package main

import (
	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config.Load")
	}
	log := logging.Setup(cfg.LogLevel)

	database, err := db.Connect(cfg.DatabaseURL, 1)
	if err != nil {
		log.WithError(err).Fatal("db.Connect")
	}
	defer database.Close()

	before, after, err := db.Migrate(database.DB, cfg.MigrationsPath)
	if err != nil {
		log.WithError(err).Fatal("db.Migrate")
	}
	log.WithFields(logrus.Fields{
		"preMigrationVersion":  before,
		"postMigrationVersion": after,
	}).Info("Migration status")
}
