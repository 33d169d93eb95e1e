package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_LocalDate(t *testing.T) {
	vh := NewValidationHelper()

	type payload struct {
		Date string `validate:"localdate"`
	}

	assert.NoError(t, vh.ValidateStruct(&payload{Date: "2024-03-15"}))
	assert.Error(t, vh.ValidateStruct(&payload{Date: "15/03/2024"}))
	assert.Error(t, vh.ValidateStruct(&payload{Date: "2024-3-15"}))
	assert.Error(t, vh.ValidateStruct(&payload{Date: "2024-13-01"}))
}

func TestValidationHelper_LocalTime(t *testing.T) {
	vh := NewValidationHelper()

	type payload struct {
		Time string `validate:"localtime"`
	}

	assert.NoError(t, vh.ValidateStruct(&payload{Time: "09:30"}))
	assert.NoError(t, vh.ValidateStruct(&payload{Time: "23:59"}))
	assert.Error(t, vh.ValidateStruct(&payload{Time: "9:30 AM"}))
	assert.Error(t, vh.ValidateStruct(&payload{Time: "25:00"}))
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "No se encontraron registros", http.StatusNotFound, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "No se encontraron registros", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation details", func(t *testing.T) {
		vh := NewValidationHelper()
		type payload struct {
			Date string `validate:"required,localdate"`
		}
		err := vh.ValidateStruct(&payload{})
		assert.Error(t, err)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Contains(t, resp.Details, "Date")
	})
}

func TestLocalFormatters(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 5, 42, 0, time.UTC)
	assert.Equal(t, "2024-03-15", LocalDate(ts))
	assert.Equal(t, "09:05", LocalTime(ts))
}
