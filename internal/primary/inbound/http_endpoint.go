package inbound

import (
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// PushContext accepts a sync context from the primary device UI. The body is
// handed over untyped; the companion validates it.
func (h *HTTPEndpoint) PushContext(r *router.Request) (any, error) {
	payload, err := r.DecodeObject()
	if err != nil {
		return nil, err
	}

	if err := h.uc.PushContext(r.Context(), payload); err != nil {
		return nil, err
	}

	return PushContextResponse{}, nil
}

// Status reports the session state of the primary.
func (h *HTTPEndpoint) Status(r *router.Request) (any, error) {
	st := h.uc.Status(r.Context())

	return SessionStatusResponse{
		Activated:   st.Activated,
		Reachable:   st.Reachable,
		LastPush:    st.LastPush,
		Revision:    st.Revision,
		CompanionID: st.CompanionID,
	}, nil
}
