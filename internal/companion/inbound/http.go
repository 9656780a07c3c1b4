package inbound

import (
	"net/http"

	"github.com/shandysiswandi/watchsync/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc, p presence) {
	end := &HTTPEndpoint{uc: uc, observers: newObservers(p)}

	r.GET("/api/v1/companion/state", end.GetState)
	r.GET("/api/v1/companion/accounts/:id", end.GetAccount)

	r.GETRaw("/api/v1/companion/stream", http.HandlerFunc(end.StreamState))
	r.GETRaw("/api/v1/companion/accounts/:id/countdown", http.HandlerFunc(end.StreamCountdown))
}
