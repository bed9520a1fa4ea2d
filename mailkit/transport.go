package mailkit

import (
	"context"
	"strconv"
	"strings"
)

// Transport delivers payloads to the mail provider.
type Transport interface {
	// Send submits a single transmission. The result reports how many
	// recipients the provider accepted and rejected.
	Send(ctx context.Context, payload Payload) (*Result, error)
}

// Result is the provider response to a transmission.
type Result struct {
	TotalAccepted int    `json:"total_accepted_recipients"`
	TotalRejected int    `json:"total_rejected_recipients"`
	ID            string `json:"id"`
}

// APIErrorDetail is a single error reported by the provider.
type APIErrorDetail struct {
	Message     string `json:"message"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIError is returned by transports when the provider rejects the request.
type APIError struct {
	StatusCode int
	Errors     []APIErrorDetail
}

func (e *APIError) Error() string {
	var b strings.Builder

	b.WriteString("provider responded with status ")
	b.WriteString(strconv.Itoa(e.StatusCode))

	for i, d := range e.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}

		b.WriteString(d.Message)

		if d.Code != "" {
			b.WriteString(" (" + d.Code + ")")
		}

		if d.Description != "" {
			b.WriteString(": " + d.Description)
		}
	}

	return b.String()
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
