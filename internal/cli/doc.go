// Package cli is responsible for parsing command-line arguments, the
// RESTORE_* environment, and option files, and for handling process-level
// concerns like exit codes. It translates them into the application's
// internal configuration.
package cli
