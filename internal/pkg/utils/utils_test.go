package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
)

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    PageParams
		wantErr bool
	}{
		{"empty", "", PageParams{}, false},
		{"both", "limit=25&offset=50", PageParams{Limit: 25, Offset: 50}, false},
		{"negative", "offset=-1", PageParams{}, true},
		{"not a number", "limit=ten", PageParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/actions?"+tt.query, nil)
			got, err := ParsePageParams(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, errors.State("action is no longer pending")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, errors.ErrCodeState, body.Error.Code)
}
