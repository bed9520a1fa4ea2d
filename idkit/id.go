// Package idkit provides the set of functions to generate
// identifiers used while delivering messages.
package idkit

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/xid"
)

// SendID returns a short unique identifier which correlates
// all the attempts and log records of a single send call.
func SendID() string { return strings.ToUpper(xid.New().String()) }

// NewTransmissionID returns a lexicographically sortable transmission
// identifier for transports which don't get one from a provider.
func NewTransmissionID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to create ulid: %w", err)
	}

	return id.String(), nil
}

// TransmissionID returns a new transmission identifier.
// Panics if it fails to generate an ID.
func TransmissionID() string {
	id, err := NewTransmissionID()
	if err != nil {
		panic(fmt.Errorf("failed to generate transmission id: %w", err))
	}

	return id
}
