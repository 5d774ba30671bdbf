package httpapi

import (
	"github.com/jkaninda/okapi"
)

// SSEEvent represents a server-sent event for streaming responses.
type SSEEvent struct {
	Type      string `json:"type"`                 // "session", "reply", "done", "error"
	Content   string `json:"content,omitempty"`    // Reply text.
	Kind      string `json:"kind,omitempty"`       // Reply kind for "reply" events.
	SessionID string `json:"session_id,omitempty"` // Set on "session" events.
}

// handleQueryStream handles POST /v1/query/stream. The reply is computed in
// one step and then sent as a short event sequence: session, reply, done.
func (g *Gateway) handleQueryStream(c *okapi.Context) error {
	if err := g.allow(c); err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("Bad request", err)
	}
	if err := validateMessage(req); err != nil {
		return c.AbortBadRequest(err.Error())
	}

	resp, err := g.service.Query(c.Context(), req, newCorrelationID())
	if err != nil {
		c.SSEvent("error", SSEEvent{Type: "error", Content: err.Error()})
		return nil
	}

	c.SSEvent("session", SSEEvent{Type: "session", SessionID: resp.SessionID})
	c.SSEvent("reply", SSEEvent{Type: "reply", Content: resp.Reply, Kind: string(resp.Kind)})
	c.SSEvent("done", SSEEvent{Type: "done"})
	return nil
}
