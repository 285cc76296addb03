// Package migrations embeds and applies the SQL schema for the
// PostgreSQL run store and the ClickHouse bar store. All migrations are
// idempotent; applying them to an up-to-date database is a no-op.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
