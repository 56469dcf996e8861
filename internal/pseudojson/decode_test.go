package pseudojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMethod Method
		wantKey    string
		wantValue  any
	}{
		{
			name:       "strict JSON",
			input:      `{"userId": "u1", "amount": 12.5}`,
			wantMethod: MethodStrict,
			wantKey:    "amount",
			wantValue:  json.Number("12.5"),
		},
		{
			name:       "python literal dict",
			input:      `{'userId': 'u1', 'isActive': True}`,
			wantMethod: MethodDialect,
			wantKey:    "isActive",
			wantValue:  true,
		},
		{
			name:       "embedded quotes in notes are repaired",
			input:      `{"userId":"u1","notes":"customer said "refund me" today","amount":5}`,
			wantMethod: MethodNormalize,
			wantKey:    "notes",
			wantValue:  `customer said "refund me" today`,
		},
		{
			name:       "unrecoverable structure falls back to scanning",
			input:      `{a: 1, b: {c: 2}, d: "x" "y"}`,
			wantMethod: MethodScan,
			wantKey:    "a",
			wantValue:  "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, method, err := Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantValue, obj[tt.wantKey])
		})
	}
}

func TestDecode_Undecodable(t *testing.T) {
	_, _, err := Decode(`{ just prose here }`)
	assert.ErrorIs(t, err, ErrUndecodable)
}
