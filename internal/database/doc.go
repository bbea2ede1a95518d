// Package database opens the PostgreSQL pool that backs the lifecycle
// journal. The pool is optional: without journal.enabled the process never
// touches a database.
package database
