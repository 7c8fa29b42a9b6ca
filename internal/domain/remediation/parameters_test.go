package remediation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_Normalize(t *testing.T) {
	params := Parameters{
		"service": "  nginx ",
		"days":    7.0,
		"args":    []interface{}{" a", "b "},
	}

	got, err := params.Normalize()
	require.NoError(t, err)

	assert.Equal(t, "nginx", got["service"])
	assert.Equal(t, json.Number("7"), got["days"])
	assert.Equal(t, []interface{}{"a", "b"}, got["args"])
	assert.Equal(t, []string{"args", "days", "service"}, got.Keys())
}

func TestDedupKey(t *testing.T) {
	a, err := Parameters{"service": " nginx", "n": 1}.Normalize()
	require.NoError(t, err)
	b, err := Parameters{"n": 1.0, "service": "nginx "}.Normalize()
	require.NoError(t, err)

	keyA, err := DedupKey("web-01", ActionTypeRestartService, a)
	require.NoError(t, err)
	keyB, err := DedupKey("web-01", ActionTypeRestartService, b)
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB, "equivalent parameters must share a key")

	otherHost, err := DedupKey("web-02", ActionTypeRestartService, a)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, otherHost)

	otherType, err := DedupKey("web-01", ActionTypeClearLogs, a)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, otherType)

	empty, err := DedupKey("web-01", ActionTypeClearTemp, nil)
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}

func TestOrigin_Actor(t *testing.T) {
	var nilOrigin *Origin
	assert.Equal(t, "system", nilOrigin.Actor())
	assert.Equal(t, "user:ops@example.com", (&Origin{Kind: OriginUser, Ref: "ops@example.com"}).Actor())
	assert.Equal(t, "alert", (&Origin{Kind: OriginAlert}).Actor())
}

func TestAction_Failure(t *testing.T) {
	failed := &Action{ID: "a-1", Status: ActionStatusFailed, FailureKind: FailureExecution, Error: json.RawMessage(`{"error":"connection refused"}`)}
	assert.EqualError(t, failed.Failure(), "action a-1 failed: connection refused")

	completed := &Action{ID: "a-2", Status: ActionStatusCompleted}
	assert.NoError(t, completed.Failure())

	timeout := &TimeoutError{ActionID: "a-3", After: 0}
	var body map[string]string
	require.NoError(t, json.Unmarshal(timeout.Payload(), &body))
	assert.Equal(t, "timeout", body["error"])
}
