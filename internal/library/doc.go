// Package library defines the comic and page data model and its SQLite
// persistence. A comic owns its ordered page sequence; pages reference the
// owner by id only. Blocked-hash records and reading-list references live in
// the same database so purge and blocking fan-out commit transactionally.
package library
