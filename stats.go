package sparkmail

// Stats holds delivery outcomes accumulated by the Mailer.
type Stats struct {
	// SentCount is the number of accepted recipients.
	SentCount int

	// RejectedCount is the number of rejected recipients.
	RejectedCount int

	// LastTransmissionID is the provider id of the last completed
	// transmission. It is reset by a failed send.
	LastTransmissionID string

	// LastError is the error of the last failed send.
	// It is reset by a completed send.
	LastError error
}

// Stats returns a snapshot of delivery outcomes.
func (m *Mailer) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}

// SentCount returns the number of accepted recipients.
func (m *Mailer) SentCount() int { return m.Stats().SentCount }

// RejectedCount returns the number of rejected recipients.
func (m *Mailer) RejectedCount() int { return m.Stats().RejectedCount }

// LastTransmissionID returns the provider id of the last completed transmission.
func (m *Mailer) LastTransmissionID() string { return m.Stats().LastTransmissionID }

// LastError returns the error of the last failed send.
func (m *Mailer) LastError() error { return m.Stats().LastError }
