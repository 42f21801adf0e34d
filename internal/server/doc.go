// Package server provides the HTTP API for controlling recording sessions
// and monitoring the service, plus a WebSocket stream of live transcript,
// note and poll events.
package server
