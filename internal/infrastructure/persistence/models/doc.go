// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - inventory.go: stock records, reservations, movements and alerts
//   - outbox.go: outbox pattern model for event delivery
//
// The tables are created by the SQL files under migrations/; AutoMigrate is only
// used against SQLite in tests.
package models
