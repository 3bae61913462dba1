// Package migrations embeds the MySQL schema for the migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
