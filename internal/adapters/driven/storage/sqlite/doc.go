// Package sqlite provides a SQLite-based implementation of the persistence ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database backs two stores:
//
//   - SectionStore: the last embedded corpus snapshot, so unchanged sections
//     are not re-embedded after a restart
//   - RoutingLogStore: the routing audit trail and its annotations
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.lorekeeper/data/lorekeeper.db
package sqlite
