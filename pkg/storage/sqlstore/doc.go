// Package sqlstore implements storage.UserStore on PostgreSQL (lib/pq) and
// SQLite (go-sqlite3) through sqlx.
//
// Writes and point lookups use the primary connection. ListAll and Count
// are served by read replicas when any are configured. The schema is
// managed by goose; each dialect has its own embedded migration set, and
// the users.email column carries the unique constraint that decides
// duplicate registrations.
package sqlstore
