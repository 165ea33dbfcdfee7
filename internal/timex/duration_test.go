package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	require.Equal(t, 90*time.Second, d.Duration)
}

func TestDuration_UnmarshalNanoseconds(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`5000000000`), &d))
	require.Equal(t, 5*time.Second, d.Duration)
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	d := Duration{Duration: 15 * time.Second}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var back Duration
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, d.Duration, back.Duration)
}
