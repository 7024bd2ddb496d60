// Package flows holds the login and refresh procedures as plain functions
// over explicit dependency structs, so they can be exercised without an
// engine, Redis or a database.
//
// Each run returns a result carrying a failure kind. The engine maps kinds
// to its public error taxonomy and decides what to log and count.
package flows
