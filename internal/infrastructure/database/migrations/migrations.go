// Package migrations bundles the versioned SQL migrations of the chat schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
