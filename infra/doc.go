// Package infra contains technical adapters such as the MQTT position
// source, channel senders, the websocket transport, the Redis store and
// metrics exporters. These packages should depend only on the
// interfaces defined in the core packages.
package infra
