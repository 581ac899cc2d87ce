package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"string minutes", `"15m"`, 15 * time.Minute, false},
		{"string days as hours", `"720h"`, 720 * time.Hour, false},
		{"integer nanoseconds", `1000000000`, time.Second, false},
		{"bad string", `"forever"`, 0, true},
		{"bool", `true`, 0, true},
		{"not json", `{`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		TTL Duration `json:"ttl"`
	}{TTL: Duration{90 * time.Second}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ttl":"1m30s"}`, string(b))
}
