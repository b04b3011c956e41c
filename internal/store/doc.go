// Package store provides filesystem- and SQLite-backed persistence for
// model preferences and the generation journal.
package store

import "github.com/user/cognitive/internal/catalog"

// Compile-time interface compliance checks.
var _ catalog.PreferenceStore = (*FilePreferences)(nil)
var _ catalog.PreferenceStore = (*SQLitePreferences)(nil)
