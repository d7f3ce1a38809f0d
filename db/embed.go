// Package db embeds the SQL files the service applies at startup.
package db

import _ "embed"

// Schema holds the full DDL for the storefront tables. Statements are
// idempotent (CREATE IF NOT EXISTS), so applying the schema on every boot is
// safe.
//
//go:embed migrations/001_schema.sql
var Schema string
