package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest_ReportsJSONFieldNames(t *testing.T) {
	err := ValidateRequest(UpdateClientRequest{Name: "Juan", Phone: "call 555"})
	require.Error(t, err)
	assert.Equal(t, "validation failed: phone: may only contain digits, spaces and + ( ) -", err.Error())

	err = ValidateRequest(MergeClientsRequest{SourceClientID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_client_id")
}

func TestValidateRequest_PhoneChars(t *testing.T) {
	valid := []string{"+54 9 11 1111-1111", "(011) 4444-5555", "5491111111111"}
	for _, p := range valid {
		assert.NoError(t, ValidateRequest(UpdateClientRequest{Name: "Juan", Phone: p}), p)
	}

	invalid := []string{"11-2233-4455 ext 2", "11.2233.4455", "+54#11"}
	for _, p := range invalid {
		assert.Error(t, ValidateRequest(UpdateClientRequest{Name: "Juan", Phone: p}), p)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr string
	}{
		{name: "valid", body: `{"name":"Juan","phone":"1122334455"}`, limit: maxBodyBytes},
		{name: "trailing data", body: `{"name":"Juan","phone":"1122334455"} {}`, limit: maxBodyBytes, wantErr: "single JSON object"},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", 200) + `","phone":"1"}`, limit: 64, wantErr: "too large"},
		{name: "unknown field", body: `{"name":"Juan","phone":"1122334455","admin":true}`, limit: maxBodyBytes, wantErr: "invalid request body"},
		{name: "fails validation", body: `{"name":"Juan"}`, limit: maxBodyBytes, wantErr: "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var dst UpdateClientRequest
			err := decodeAndValidate(httptest.NewRecorder(), req, tt.limit, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Juan", dst.Name)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
