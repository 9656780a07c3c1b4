package inbound

import (
	"net/http"
	"time"
)

type PushContextResponse struct{}

func (PushContextResponse) StatusCode() int { return http.StatusAccepted }

func (PushContextResponse) Message() string { return "sync context accepted" }

type SessionStatusResponse struct {
	Activated   bool       `json:"activated"`
	Reachable   bool       `json:"reachable"`
	LastPush    *time.Time `json:"lastPush"`
	Revision    int64      `json:"revision,string"`
	CompanionID string     `json:"companionId"`
}
