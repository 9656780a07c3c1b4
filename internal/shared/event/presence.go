package event

import "time"

// PresenceState is the lifecycle state a companion reports.
type PresenceState string

const (
	PresenceActivated   PresenceState = "activated"
	PresenceForeground  PresenceState = "foreground"
	PresenceBackground  PresenceState = "background"
	PresenceDeactivated PresenceState = "deactivated"
)

func (s PresenceState) String() string {
	return string(s)
}

// PresenceMessage is published by the companion on activation, on every
// heartbeat and when it closes.
type PresenceMessage struct {
	CompanionID  string        `json:"companionId"`
	ActivationID string        `json:"activationId"`
	State        PresenceState `json:"state"`
	SentAt       time.Time     `json:"sentAt"`
}
