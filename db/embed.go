// Package db embeds the catalogue schema and the sample products.
package db

import _ "embed"

// Schema contains the DDL for the productos table.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts holds sample products in the import JSON-lines format.
//
//go:embed seed/products.jsonl
var SeedProducts []byte
