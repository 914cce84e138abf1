// Package database provides SQLite storage for the photo catalog.
//
// It handles storage and retrieval of:
//   - Photo records and their extracted metadata
//   - Tags and photo-tag associations
//   - The thumbnail cache index
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization and additive migrations.
package database
