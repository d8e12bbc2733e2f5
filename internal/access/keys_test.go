package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sharekeeper/internal/api"
)

func TestValidateAccessKeys(t *testing.T) {
	processed := []api.AccessRule{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name    string
		payload any
		want    map[string]string
		wantErr bool
	}{
		{name: "nil", payload: nil},
		{name: "empty string map", payload: map[string]string{}},
		{name: "empty decoded map", payload: map[string]any{}},
		{name: "empty list", payload: []any{}},
		{name: "empty string", payload: ""},
		{name: "zero", payload: 0},
		{name: "nil map pointer", payload: (*map[string]string)(nil)},
		{name: "string map", payload: map[string]string{"a": "k1"}, want: map[string]string{"a": "k1"}},
		{name: "decoded map", payload: map[string]any{"a": "k1", "b": "k2"}, want: map[string]string{"a": "k1", "b": "k2"}},
		{name: "unknown rule", payload: map[string]string{"a": "k1", "z": "k2"}, wantErr: true},
		{name: "unknown rule in decoded map", payload: map[string]any{"z": "k"}, wantErr: true},
		{name: "non-string key value", payload: map[string]any{"a": 1}, wantErr: true},
		{name: "nil key value", payload: map[string]any{"a": nil}, wantErr: true},
		{name: "list", payload: []string{"a"}, wantErr: true},
		{name: "string", payload: "a=k1", wantErr: true},
		{name: "number", payload: 7, wantErr: true},
		{name: "map keyed by int", payload: map[int]string{1: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := validateAccessKeys(tt.payload, processed)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, api.IsInvalid(err))
				assert.Nil(t, keys)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestValidateAccessKeys_NothingProcessed(t *testing.T) {
	_, err := validateAccessKeys(map[string]string{"a": "k"}, nil)
	assert.True(t, api.IsInvalid(err))

	keys, err := validateAccessKeys(nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, keys)
}
