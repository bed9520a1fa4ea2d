package mailkit

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/plainq/sparkmail/errkit"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// startTimeLayout is the format of scheduled transmissions.
const startTimeLayout = "2006-01-02T15:04:05-07:00"

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// sanitizer keeps the markup users may write in Markdown
	// and drops scripts, styles and event handlers.
	sanitizer = bluemonday.UGCPolicy()
)

// SetMarkdownBody renders Markdown into the HTML body and keeps
// the source as the plain text body.
func (m *Message) SetMarkdownBody(source string) *Message {
	var html bytes.Buffer

	if err := markdown.Convert([]byte(source), &html); err != nil {
		m.setErr(fmt.Errorf("render markdown: %w: %w", err, errkit.ErrInvalidArgument))
		return m
	}

	m.html = sanitizer.Sanitize(html.String())
	m.text = source

	return m
}

// ParseStartTime converts a date in almost any common format to the
// start time option. "now" is passed as is. Dates without a zone are
// taken in UTC.
func ParseStartTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "now") {
		return "now", nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("start time %q: %w", s, errkit.ErrValidation)
	}

	return t.Format(startTimeLayout), nil
}

// SetStartTime schedules the transmission.
func (m *Message) SetStartTime(t time.Time) *Message {
	m.options.StartTime = t.Format(startTimeLayout)
	return m
}
