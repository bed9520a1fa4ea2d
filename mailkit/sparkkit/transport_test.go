package sparkkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/plainq/sparkmail/mailkit"
)

func TestTransmission(t *testing.T) {
	m := mailkit.NewMessage().
		SetFrom("Shop <shop@example.com>").
		SetSubject("Hello").
		SetHTMLBody("<p>Hi</p>").
		SetCampaign("spring").
		SetTo(mailkit.Emails("a@example.com")...).
		SetCc(mailkit.Emails("c@example.com")...).
		SetSandbox(true)

	payload, err := m.Payload()
	td.Require(t).CmpNoError(err)

	encoded, err := json.Marshal(Transmission(payload))
	td.Require(t).CmpNoError(err)

	td.Cmp(t, json.RawMessage(encoded), td.JSON(`{
		"campaign_id": "spring",
		"options": {"sandbox": true},
		"recipients": [
			{"address": {"email": "a@example.com"}},
			{"address": {"email": "c@example.com", "header_to": "a@example.com"}}
		],
		"content": {
			"from": "\"Shop\" <shop@example.com>",
			"subject": "Hello",
			"html": "<p>Hi</p>",
			"headers": {"Cc": "c@example.com"}
		}
	}`))
}

func TestTransmission_RecipientList(t *testing.T) {
	payload, err := mailkit.NewMessage().
		SetRecipientListID("newsletter").
		SetTemplateID("weekly").
		SetUseDraftTemplate(false).
		Payload()
	td.Require(t).CmpNoError(err)

	td.Cmp(t, Transmission(payload), map[string]any{
		"recipients": map[string]any{"list_id": "newsletter"},
		"content": map[string]any{
			"template_id":        "weekly",
			"use_draft_template": false,
		},
	})
}

func TestTransport_Send(t *testing.T) {
	type tcase struct {
		status     int
		response   string
		wantResult *mailkit.Result
		wantErr    any
	}

	tests := map[string]tcase{
		"accepted": {
			status:   http.StatusOK,
			response: `{"results":{"total_rejected_recipients":0,"total_accepted_recipients":1,"id":"t1"}}`,
			wantResult: &mailkit.Result{
				TotalAccepted: 1,
				ID:            "t1",
			},
		},
		"rejected": {
			status:   http.StatusOK,
			response: `{"results":{"total_rejected_recipients":1,"total_accepted_recipients":0,"id":"t2"}}`,
			wantResult: &mailkit.Result{
				TotalRejected: 1,
				ID:            "t2",
			},
		},
		"api error": {
			status:   http.StatusBadRequest,
			response: `{"errors":[{"message":"invalid data format/type","code":"1300","description":"bad recipients"}]}`,
			wantErr: &mailkit.APIError{
				StatusCode: http.StatusBadRequest,
				Errors: []mailkit.APIErrorDetail{{
					Message:     "invalid data format/type",
					Code:        "1300",
					Description: "bad recipients",
				}},
			},
		},
		"unreadable error": {
			status:   http.StatusBadGateway,
			response: `<html>bad gateway</html>`,
			wantErr:  &mailkit.APIError{StatusCode: http.StatusBadGateway},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				td.Cmp(t, r.Method, http.MethodPost)
				td.Cmp(t, r.Header.Get("Authorization"), "key")
				td.Cmp(t, r.Header.Get("Content-Type"), "application/json")
				td.Cmp(t, r.Header.Get("User-Agent"), userAgent)

				body, err := io.ReadAll(r.Body)
				td.CmpNoError(t, err)
				td.Cmp(t, json.RawMessage(body), td.JSON(`{"content":{"subject":"Hi"}}`))

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.response))
			}))
			t.Cleanup(srv.Close)

			transport := New("key", WithEndpoint(srv.URL))

			result, err := transport.Send(context.Background(), mailkit.Payload{mailkit.KeySubject: "Hi"})
			if tc.wantErr != nil {
				var apiErr *mailkit.APIError
				td.Require(t).True(errors.As(err, &apiErr))
				td.Cmp(t, apiErr, tc.wantErr)
				td.CmpNil(t, result)
				return
			}

			td.CmpNoError(t, err)
			td.Cmp(t, result, tc.wantResult)
		})
	}
}

func TestTransport_SendNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	_, err := New("key", WithEndpoint(srv.URL)).Send(context.Background(), mailkit.Payload{})
	td.CmpError(t, err)
}

func TestNew(t *testing.T) {
	transport := New("key")

	td.Cmp(t, transport.endpoint, EndpointUS)
	td.CmpNotNil(t, transport.client)

	transport = New("key", WithEndpoint(EndpointEU+"/"), WithHTTPClient(http.DefaultClient))

	td.Cmp(t, transport.endpoint, EndpointEU)
	td.Cmp(t, transport.client, td.Shallow(http.DefaultClient))
}
