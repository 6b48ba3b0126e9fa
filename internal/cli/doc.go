// Package cli implements the command-line interface for telefication.
//
// The cli package provides the Cobra-based CLI: serve runs the HTTP server, send and
// chat-id mirror the two buttons of the settings page, render shows what an event
// would produce (or sends it with --send), and settings manages the stored record.
// Settings come from --config when given, otherwise from the store in --data-dir;
// TELEFICATION_* environment variables override either.
package cli
