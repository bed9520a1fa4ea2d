package mailkit

// Options holds transmission options. Nil fields are omitted
// from the payload, so the provider defaults apply.
type Options struct {
	// StartTime schedules the transmission, format is
	// YYYY-MM-DDTHH:MM:SS+-HH:MM or "now".
	StartTime string

	OpenTracking    *bool
	ClickTracking   *bool
	Transactional   *bool
	Sandbox         *bool
	SkipSuppression *bool
	InlineCSS       *bool
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// values returns options which were set, keyed by the provider field name.
func (o Options) values() map[string]any {
	values := make(map[string]any, 7)

	if o.StartTime != "" {
		values["start_time"] = o.StartTime
	}

	flags := map[string]*bool{
		"open_tracking":    o.OpenTracking,
		"click_tracking":   o.ClickTracking,
		"transactional":    o.Transactional,
		"sandbox":          o.Sandbox,
		"skip_suppression": o.SkipSuppression,
		"inline_css":       o.InlineCSS,
	}

	for name, flag := range flags {
		if flag != nil {
			values[name] = *flag
		}
	}

	return values
}
