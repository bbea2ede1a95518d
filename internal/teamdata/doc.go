// Package teamdata keeps the live team pairing snapshot.
//
// The Loader fetches the snapshot over REST on start and on every refresh
// interval. The Router applies pushed channel messages on top of it. The
// Store reports when the initial data becomes present, which feeds the
// lifecycle controller's gate.
package teamdata
