// Package connection manages WebSocket connections to the Polymarket
// market channel.
//
// Each datastream group gets its own connection subscribed to the group's
// clob token IDs. The feed uses an application-level text PING/PONG
// keepalive on top of protocol pings; connections that go quiet are torn
// down and redialed with exponential backoff.
package connection
