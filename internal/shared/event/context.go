package event

// Default subjects and keys shared by both sides of the session.
const (
	ContextDestination  string = "watchsync.context"
	PresenceDestination string = "watchsync.presence"
	LatestContextKey    string = "watchsync:latest-context"
)

// Message headers.
const (
	HeaderCorrelationID string = "cID"
	HeaderRevision      string = "rev"
)

// Account types as they appear on the wire.
const (
	AccountTypeTOTP  string = "totp"
	AccountTypeHOTP  string = "hotp"
	AccountTypeSteam string = "steam"
)

// SyncContextMessage is the payload the primary pushes to the companion.
type SyncContextMessage struct {
	IsAuthenticated bool                     `json:"isAuthenticated"`
	Accounts        []AccountSnapshotMessage `json:"accounts"`
}

// AccountSnapshotMessage is one account entry of SyncContextMessage.
type AccountSnapshotMessage struct {
	ID               string  `json:"id"`
	Issuer           string  `json:"issuer"`
	Name             string  `json:"name"`
	Code             string  `json:"code"`
	RemainingSeconds int     `json:"remainingSeconds"`
	Period           int     `json:"period"`
	Type             string  `json:"type"`
	Progress         float64 `json:"progress"`
}

// Map returns the message in the untyped shape the session transports.
func (m SyncContextMessage) Map() map[string]any {
	accounts := make([]any, 0, len(m.Accounts))
	for _, a := range m.Accounts {
		accounts = append(accounts, map[string]any{
			"id":               a.ID,
			"issuer":           a.Issuer,
			"name":             a.Name,
			"code":             a.Code,
			"remainingSeconds": a.RemainingSeconds,
			"period":           a.Period,
			"type":             a.Type,
			"progress":         a.Progress,
		})
	}

	return map[string]any{
		"isAuthenticated": m.IsAuthenticated,
		"accounts":        accounts,
	}
}
