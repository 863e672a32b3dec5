package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AnalysisResponse(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantErr   bool
		wantField string
	}{
		{
			name: "valid response",
			doc:  `{"description":"HTTP framework","tags":["web","http"]}`,
		},
		{
			name: "empty tags are shape-valid",
			doc:  `{"description":"d","tags":[]}`,
		},
		{
			name:      "missing tags",
			doc:       `{"description":"d"}`,
			wantErr:   true,
			wantField: "(root)",
		},
		{
			name:      "tags of wrong type",
			doc:       `{"description":"d","tags":"web"}`,
			wantErr:   true,
			wantField: "tags",
		},
		{
			name:      "non-string tag",
			doc:       `{"description":"d","tags":["web", 3]}`,
			wantErr:   true,
			wantField: "tags.1",
		},
		{
			name:      "not json",
			doc:       `Sure! Here is the JSON you asked for`,
			wantErr:   true,
			wantField: "(root)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(AnalysisResponse, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "error should be ValidationError type")
			require.NotEmpty(t, verr.Errors)
			assert.Equal(t, tt.wantField, verr.Errors[0].Field)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	require.Error(t, err)
	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "missing.schema.json")
}

func TestValidateBytes(t *testing.T) {
	schema := []byte(`{"type":"object","required":["name"]}`)

	assert.NoError(t, ValidateBytes(schema, []byte(`{"name":"x"}`)))

	err := ValidateBytes(schema, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateBytes_InvalidSchema(t *testing.T) {
	err := ValidateBytes([]byte(`{not json`), []byte(`{}`))
	require.Error(t, err)
	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}
