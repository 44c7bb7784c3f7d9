package events

// UpdateReason tells subscribers what triggered a matches_updated event.
type UpdateReason string

const (
	UpdateReasonInitial UpdateReason = "initial"
	UpdateReasonPattern UpdateReason = "pattern"
	UpdateReasonTree    UpdateReason = "tree"

	// UpdateReasonRequest marks a snapshot sent in answer to a client request.
	UpdateReasonRequest UpdateReason = "request"
)

// MatchesUpdatedPayload is the payload for matches_updated events.
// Paths may be truncated; MatchCount is always the full count.
type MatchesUpdatedPayload struct {
	Reason     UpdateReason `json:"reason"`
	Pattern    string       `json:"pattern"`
	Paths      []string     `json:"paths"`
	MatchCount int          `json:"match_count"`
	TotalFiles int          `json:"total_files"`
	Truncated  bool         `json:"truncated,omitempty"`
}

// PatternChangedPayload is the payload for pattern_changed events.
type PatternChangedPayload struct {
	Pattern string `json:"pattern"`
}

// FilterStoppedPayload is the payload for filter_stopped events.
type FilterStoppedPayload struct {
	Error string `json:"error,omitempty"`
}

// NewMatchesUpdatedEvent creates a new matches_updated event.
func NewMatchesUpdatedEvent(reason UpdateReason, pattern string, paths []string, matchCount, totalFiles int) *BaseEvent {
	return NewEvent(EventTypeMatchesUpdated, MatchesUpdatedPayload{
		Reason:     reason,
		Pattern:    pattern,
		Paths:      paths,
		MatchCount: matchCount,
		TotalFiles: totalFiles,
		Truncated:  len(paths) < matchCount,
	})
}

// NewPatternChangedEvent creates a new pattern_changed event.
func NewPatternChangedEvent(pattern string) *BaseEvent {
	return NewEvent(EventTypePatternChanged, PatternChangedPayload{
		Pattern: pattern,
	})
}

// NewFilterStoppedEvent creates a new filter_stopped event.
func NewFilterStoppedEvent(err error) *BaseEvent {
	payload := FilterStoppedPayload{}
	if err != nil {
		payload.Error = err.Error()
	}
	return NewEvent(EventTypeFilterStopped, payload)
}

// StatusPayload describes the state of the running filter.
type StatusPayload struct {
	Pattern       string `json:"pattern"`
	Processing    bool   `json:"processing"`
	MatchCount    int    `json:"match_count"`
	TotalFiles    int    `json:"total_files"`
	Subscribers   int    `json:"subscribers"`
	DroppedEvents int64  `json:"dropped_events"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewStatusEvent creates a status event answering the request with requestID.
func NewStatusEvent(status StatusPayload, requestID string) *BaseEvent {
	return NewEventWithRequestID(EventTypeStatus, status, requestID)
}
