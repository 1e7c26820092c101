// Package db embeds the backend schema.
package db

import _ "embed"

// Schema creates the catalog, token, cart, coupon, order and address tables. Every
// statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
