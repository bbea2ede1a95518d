// Package connection implements the websocket transport under the event channel.
//
// The transport:
//   - Dials the Pairamid event endpoint with an optional bearer token
//   - Answers server pings and sends keepalive pings of its own
//   - Reports every loss of the connection as a classified Drop
//   - Re-dials with exponential backoff until the Session is closed
//
// Recovery policy does not live here. The Session only keeps trying, the same
// way a socket library's auto-reconnect does; callers decide what a Drop means.
package connection
