package models_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacelog/privacy-service/internal/api/models"
)

func TestEnvelope_WriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()

	env := models.OKEnvelope(map[string]string{"requestId": "del_usr_1_1700000000000"}, "deletion scheduled")
	env.Write(rec, 200)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "deletion scheduled", decoded["message"])
	assert.NotContains(t, decoded, "error")
}

func TestEnvelope_WriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	env := models.ErrorEnvelope("FAILED_PRECONDITION", "deletion can no longer be cancelled", nil)
	env.Write(rec, 412)

	assert.Equal(t, 412, rec.Code)

	var decoded struct {
		Success bool              `json:"success"`
		Error   *models.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "FAILED_PRECONDITION", decoded.Error.Code)
}
