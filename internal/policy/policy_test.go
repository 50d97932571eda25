package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidFile(t *testing.T) {
	policies, err := Load("testdata/limits.cue")
	require.NoError(t, err)
	require.Len(t, policies, 2)

	checkout := policies["checkout"]
	assert.Equal(t, int64(3), checkout.Capacity)
	assert.Equal(t, int64(3), checkout.RefillAmount)
	assert.Equal(t, time.Minute, checkout.RefillInterval)

	admin := policies["admin"]
	assert.Equal(t, int64(30), admin.Capacity)
	assert.Equal(t, time.Second, admin.RefillInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.cue")
	assert.Error(t, err)
}

func TestParse_RejectsNonPositiveCapacity(t *testing.T) {
	src := `policies: bad: {capacity: 0, refill_amount: 1, refill_interval_ms: 1000}`
	_, err := Parse([]byte(src), "bad.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.cue")
}

func TestParse_RejectsMissingField(t *testing.T) {
	src := `policies: bad: {capacity: 1, refill_amount: 1}`
	_, err := Parse([]byte(src), "bad.cue")
	assert.Error(t, err)
}

func TestParse_RejectsWrongType(t *testing.T) {
	src := `policies: bad: {capacity: "three", refill_amount: 1, refill_interval_ms: 1000}`
	_, err := Parse([]byte(src), "bad.cue")
	assert.Error(t, err)
}

func TestParse_RejectsEmptyPolicies(t *testing.T) {
	_, err := Parse([]byte(`policies: {}`), "empty.cue")
	assert.Error(t, err)
}

func TestParse_RejectsMalformedSource(t *testing.T) {
	_, err := Parse([]byte(`policies: {`), "broken.cue")
	assert.Error(t, err)
}
