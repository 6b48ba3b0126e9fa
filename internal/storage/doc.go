// Package storage persists the settings record in a SQLite option table.
//
// The table mirrors a CMS options store: one row per named option holding a text value.
// The settings record lives under the "telefication" option as JSON. The default
// location is ~/.local/share/telefication/telefication.db.
package storage
