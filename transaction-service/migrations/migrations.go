// Package migrations embeds the transaction-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
