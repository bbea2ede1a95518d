// Package journal records lifecycle events in PostgreSQL.
//
// Events are handed over without blocking the event loop, accumulated in
// batches and inserted with pgx.Batch. The table is append-only.
package journal
