// Package cli implements the irma command-line client.
//
// Every command runs through the same controller: the three local documents
// (defaults, credential, session) are loaded into a State, the command
// executes against that snapshot, and only when it exits with code zero are
// the sub-states it marked dirty written back. A failed or cancelled command
// therefore never changes what is on disk.
//
// Local documents live in $IRMA_HOME, or ~/.irma when unset:
//
//	defaults.toml   string settings such as base-url and product
//	auth.json       cached bearer credential (mode 0600)
//	sessions.json   current conversation and most-recently-used list
package cli
