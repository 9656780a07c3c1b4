package session

import (
	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
)

// NewConfig reads the session.* keys. consumer names the subscription of
// this process on every messaging driver; presence and context are broadcast,
// so it must not be shared with another process.
func NewConfig(cfg config.Config, consumer string) Config {
	return Config{
		ContextSubject:   cfg.GetString("session.context_subject"),
		PresenceSubject:  cfg.GetString("session.presence_subject"),
		LatestContextKey: cfg.GetString("session.latest_context_key"),

		ImmediateTimeout:  cfg.GetMillisecond("session.immediate_timeout_ms"),
		DurableTimeout:    cfg.GetMillisecond("session.durable_timeout_ms"),
		ReachableTTL:      cfg.GetSecond("session.reachable_ttl_seconds"),
		HeartbeatInterval: cfg.GetSecond("session.heartbeat_interval_seconds"),
		MaxPayloadBytes:   cfg.GetInt("session.max_payload_bytes"),

		ConsumeOptions: []messaging.ConsumeOption{
			messaging.WithGroup(consumer),
			messaging.WithChannel(consumer),
			messaging.WithSubscription(consumer),
		},
		WatchOptions: []slot.WatchOption{
			slot.WithPollInterval(cfg.GetMillisecond("session.slot_poll_interval_ms")),
		},
	}.withDefaults()
}
