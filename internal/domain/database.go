package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

var databaseNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateDatabaseName checks name against the lowercase-only database
// identifier pattern, stricter than collection/field names since it also
// becomes a literal prefix of Postgres table, Qdrant collection, and MinIO
// bucket names.
func ValidateDatabaseName(name string) error {
	if len(name) < 1 || len(name) > 63 || !databaseNamePattern.MatchString(name) {
		return ErrValidation
	}
	return nil
}

// Database is a logical tenant: a catalog row whose name prefixes its
// collections' Postgres tables (rec_{database}_{collection}), Qdrant
// collections, and MinIO buckets. No separate Postgres database is created
// or dropped for it.
type Database struct {
	ID          uuid.UUID
	Name        string
	Description string
	Metadata    map[string]Value
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
