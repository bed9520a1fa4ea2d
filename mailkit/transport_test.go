package mailkit

import (
	"net/http"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestAPIError(t *testing.T) {
	type tcase struct {
		err           *APIError
		wantMessage   string
		wantTemporary bool
	}

	tests := map[string]tcase{
		"bad request": {
			err: &APIError{
				StatusCode: http.StatusBadRequest,
				Errors: []APIErrorDetail{
					{Message: "invalid data format/type", Code: "1300", Description: "Invalid recipient"},
					{Message: "required field is missing"},
				},
			},
			wantMessage: "provider responded with status 400: invalid data format/type (1300): Invalid recipient; required field is missing",
		},
		"unauthorized": {
			err:         &APIError{StatusCode: http.StatusUnauthorized},
			wantMessage: "provider responded with status 401",
		},
		"too many requests": {
			err:           &APIError{StatusCode: http.StatusTooManyRequests},
			wantMessage:   "provider responded with status 429",
			wantTemporary: true,
		},
		"service unavailable": {
			err:           &APIError{StatusCode: http.StatusServiceUnavailable},
			wantMessage:   "provider responded with status 503",
			wantTemporary: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			td.Cmp(t, tc.err.Error(), tc.wantMessage)
			td.Cmp(t, tc.err.Temporary(), tc.wantTemporary)
		})
	}
}
