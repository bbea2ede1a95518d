// Package api provides the Pairamid REST API client.
//
// Endpoints used by the live view:
//   - GET {rest_url}/team/{id}
//   - GET {rest_url}/team/{id}/pairs
//   - GET {rest_url}/team/{id}/users
//
// Requests carry "Authorization: Bearer <token>" when a token is configured.
// Server errors and 429s are retried with jittered exponential backoff.
package api
