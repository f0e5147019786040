// Package mongostore implements storage.UserStore on MongoDB using the v2
// driver. Users live in the "users" collection; EnsureIndexes must run once
// (the migrate command does this) so that the unique email index exists.
package mongostore
