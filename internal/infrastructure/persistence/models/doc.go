// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns: models carry the GORM annotations and table mappings, provide
// mappers to and from the domain types, and repositories use them for all database
// operations.
package models
