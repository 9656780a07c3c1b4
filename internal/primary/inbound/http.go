package inbound

import (
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/primary/context", end.PushContext)
	r.GET("/api/v1/primary/session", end.Status)
}
