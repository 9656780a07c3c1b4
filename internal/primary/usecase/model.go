package usecase

import "time"

type StatusOutput struct {
	Activated   bool
	Reachable   bool
	LastPush    *time.Time
	Revision    int64
	CompanionID string
}
