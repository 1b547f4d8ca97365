// Package ws streams the active alert set to WebSocket clients. The hub
// re-evaluates alerts for the default partition on a fixed interval and
// broadcasts the result to every connected client, so the stream and the
// REST endpoint always agree.
package ws
