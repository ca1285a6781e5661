// Package transport exposes call sessions over websocket.
//
// The server upgrades connections on the configured path and hands each one
// to the session registry. Binary frames are inbound PCM audio, text frames
// are JSON control messages. Outbound audio and events share one writer per
// connection. The package also serves the health endpoint and, when
// configured on the same address, the Prometheus metrics endpoint.
//
// Replayer is the client side: it streams a recording to a running gateway
// at real-time pace, which is how the pipeline is exercised without a PBX.
package transport
