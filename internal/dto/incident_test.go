package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormTextAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]FormText{
		`{"academicYear":"2024"}`: "2024",
		`{"academicYear":2024}`:   "2024",
		`{"academicYear":null}`:   "",
	}
	for raw, want := range cases {
		var form IncidentForm
		require.NoError(t, json.Unmarshal([]byte(raw), &form), raw)
		assert.Equal(t, want, form.AcademicYear, raw)
	}

	var form IncidentForm
	assert.Error(t, json.Unmarshal([]byte(`{"academicYear":true}`), &form))
}
