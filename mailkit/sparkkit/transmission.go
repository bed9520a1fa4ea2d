package sparkkit

import (
	"strings"

	"github.com/plainq/sparkmail/mailkit"
)

// transmissionFields maps payload keys to the fields of the
// transmission request body, dots separate nested objects.
var transmissionFields = map[string]string{
	mailkit.KeyCampaign:         "campaign_id",
	mailkit.KeyMetadata:         "metadata",
	mailkit.KeySubstitutionData: "substitution_data",
	mailkit.KeyDescription:      "description",
	mailkit.KeyReturnPath:       "return_path",
	mailkit.KeyRecipients:       "recipients",
	mailkit.KeyRecipientList:    "recipients.list_id",

	mailkit.KeyReplyTo:          "content.reply_to",
	mailkit.KeySubject:          "content.subject",
	mailkit.KeyFrom:             "content.from",
	mailkit.KeyHTML:             "content.html",
	mailkit.KeyText:             "content.text",
	mailkit.KeyRFC822:           "content.email_rfc822",
	mailkit.KeyCustomHeaders:    "content.headers",
	mailkit.KeyTemplate:         "content.template_id",
	mailkit.KeyUseDraftTemplate: "content.use_draft_template",
	mailkit.KeyInlineImages:     "content.inline_images",
	mailkit.KeyAttachments:      "content.attachments",

	mailkit.KeyTrackOpens:      "options.open_tracking",
	mailkit.KeyTrackClicks:     "options.click_tracking",
	mailkit.KeyTransactional:   "options.transactional",
	mailkit.KeySandbox:         "options.sandbox",
	mailkit.KeySkipSuppression: "options.skip_suppression",
	mailkit.KeyStartTime:       "options.start_time",
	mailkit.KeyInlineCSS:       "options.inline_css",
}

// Transmission converts the flat payload into the request body of the
// Transmissions API. Unknown payload keys are passed at the top level.
func Transmission(payload mailkit.Payload) map[string]any {
	body := make(map[string]any, len(payload))

	for key, value := range payload {
		path, ok := transmissionFields[key]
		if !ok {
			path = key
		}

		parent, field, nested := strings.Cut(path, ".")
		if !nested {
			body[parent] = value
			continue
		}

		sub, ok := body[parent].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			body[parent] = sub
		}

		sub[field] = value
	}

	return body
}
