// Package messaging provides a broker-agnostic publish/consume API used for
// the immediate delivery channel and the companion presence heartbeats.
//
// Every subject is treated as broadcast: each consumer sees every message
// published after it became ready. Drivers exist for NATS, NSQ, Kafka,
// Google Pub/Sub and an in-process memory bus.
package messaging
