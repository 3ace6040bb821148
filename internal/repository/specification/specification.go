package specification

import "gorm.io/gorm"

// Specification narrows a query. Repositories apply them in the order given.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// ApplyAll folds specs over db. Nil specs are skipped so callers can pass optional filters.
func ApplyAll(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		if spec == nil {
			continue
		}
		db = spec.Apply(db)
	}
	return db
}
