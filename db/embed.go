// Package db embeds the PostgreSQL schema used by the relational storage
// backend.
package db

import _ "embed"

// Schema creates the catalog, user, address, order, outbox and webhook
// tables. Every statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
