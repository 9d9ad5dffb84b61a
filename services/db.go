package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate applies a row-level write lock on dialects that support it.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "sqlite", "sqlite3":
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
