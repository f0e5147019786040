// Package storage defines how user accounts are persisted.
//
// # Overview
//
// The UserStore interface is composed from focused capabilities:
//
//   - UserReader: FindByEmail, FindByID, ListAll, Count
//   - UserWriter: Create
//   - HealthChecker: Ping
//
// Emails are stored in their normalized (trimmed, lower case) form; callers
// normalize before calling into a store. Every backend enforces email
// uniqueness itself and reports a collision as ErrDuplicateKey, which is the
// authoritative signal for "user already exists" even when two registrations
// race past an application level pre-check.
//
// # Backends
//
//   - MemoryStore (this package): map backed, for tests and local runs
//   - sqlstore: PostgreSQL (lib/pq) or SQLite (go-sqlite3) through sqlx with
//     goose migrations and optional read replicas
//   - mongostore: MongoDB with a unique index on email
//
// # Records
//
// User carries the bcrypt digest. Anything leaving the process goes through
// User.Public, which drops it:
//
//	users, err := store.ListAll(ctx)
//	out := make([]storage.PublicUser, 0, len(users))
//	for _, u := range users {
//		out = append(out, u.Public())
//	}
package storage
