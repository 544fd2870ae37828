package storage

import (
	"database/sql"

	"indexwatch/internal/models"
)

// TristateValue maps a Tristate onto a nullable integer column.
func TristateValue(t models.Tristate) any {
	switch t {
	case models.Yes:
		return 1
	case models.No:
		return 0
	default:
		return nil
	}
}

// TristateFromNull is the inverse of TristateValue.
func TristateFromNull(v sql.NullInt64) models.Tristate {
	if !v.Valid {
		return models.Unknown
	}
	return models.TristateOf(v.Int64 != 0)
}
