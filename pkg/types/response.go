package types

import (
	"strings"
	"time"
)

// Response is the result of one completed generation attempt. Exactly one
// Response is produced per attempt; cached copies are cloned so callers
// cannot corrupt the cache by mutating what they receive.
type Response struct {
	RequestID      string         `json:"request_id"`
	Content        string         `json:"content"`
	Error          string         `json:"error,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model,omitempty"`
	Usage          map[string]any `json:"usage,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Success reports whether the attempt produced usable content: no error
// and a non-blank body.
func (r *Response) Success() bool {
	return r.Error == "" && strings.TrimSpace(r.Content) != ""
}

// Clone returns a copy with its own Usage map, safe to hand out from a
// cache without sharing mutable state.
func (r *Response) Clone() *Response {
	out := *r
	if r.Usage != nil {
		out.Usage = make(map[string]any, len(r.Usage))
		for k, v := range r.Usage {
			out.Usage[k] = v
		}
	}
	return &out
}
