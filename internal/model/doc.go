// Package model defines shared data types used across pairamid-live.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - Pairamid record IDs: strings as the server sends them
//   - Journal row and application generation IDs: uuid.UUID
package model
