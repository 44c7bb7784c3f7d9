package server

import (
	"errors"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/commands"
	"github.com/brianly1003/dirfilter/internal/domain/events"
)

// handleCommand dispatches one client message. Failures are answered with an
// error event carrying the request ID.
func (s *Server) handleCommand(client *Client, message []byte) {
	cmd, err := commands.ParseCommand(message)
	if err != nil {
		_ = client.Send(events.NewErrorEvent(domain.ErrCodeInvalidPayload, "invalid command: "+err.Error(), ""))
		return
	}

	switch cmd.Command {
	case commands.CommandSetPattern:
		payload, err := cmd.ParseSetPatternPayload()
		if err != nil {
			_ = client.Send(events.NewErrorEvent(domain.ErrCodeInvalidPayload, err.Error(), cmd.RequestID))
			return
		}
		if err := s.filter.SetPattern(payload.Pattern); err != nil {
			code := domain.ErrCodeInternalError
			if errors.Is(err, domain.ErrFilterStopped) {
				code = domain.ErrCodeFilterStopped
			}
			_ = client.Send(events.NewErrorEvent(code, err.Error(), cmd.RequestID))
		}
		// The resulting matches_updated event reaches the client through the hub.

	case commands.CommandGetMatches:
		payload, err := cmd.ParseGetMatchesPayload()
		if err != nil {
			_ = client.Send(events.NewErrorEvent(domain.ErrCodeInvalidPayload, err.Error(), cmd.RequestID))
			return
		}
		limit := s.maxResults
		if payload.Limit > 0 {
			limit = payload.Limit
		}
		snap, ok := s.filter.Latest()
		if !ok {
			_ = client.Send(events.NewErrorEvent(domain.ErrCodeInternalError, domain.ErrNoTreeAvailable.Error(), cmd.RequestID))
			return
		}
		_ = client.Send(s.matchesEvent(snap, limit, cmd.RequestID))

	case commands.CommandGetStatus:
		_ = client.Send(events.NewStatusEvent(s.status(), cmd.RequestID))

	default:
		_ = client.Send(events.NewErrorEvent(domain.ErrCodeInvalidPayload, "unknown command: "+string(cmd.Command), cmd.RequestID))
	}
}
