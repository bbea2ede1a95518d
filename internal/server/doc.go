// Package server exposes the live pairing view over HTTP.
//
// The server outlives application generations: the supervisor attaches the
// current generation's controller, store and channel with Attach after every
// rebuild. Requests served between generations see the blank view.
//
// Routes:
//
//	GET  /live     gated snapshot (200) or fallback/blank view (503)
//	GET  /status   lifecycle status
//	GET  /health   component health
//	POST /reload   request a full application reload
//	GET  /metrics  Prometheus exposition (path configurable)
package server
