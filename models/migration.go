package models

import (
	"log"

	"github.com/mmdatafocus/wells_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := MigrateTableWithDB(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// MigrateTableWithDB lets tests migrate an injected store handle.
func MigrateTableWithDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&Platform{}, &Well{},
		&SyncRun{}, &SyncRunError{},
	)
}
