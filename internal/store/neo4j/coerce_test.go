package neo4j

import (
	"math/big"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropsRoundTrip(t *testing.T) {
	instant := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	canonical := map[string]any{
		"id":            "user-1",
		"name":          "Ada",
		"emailVerified": instant,
		"visits":        int64(42),
	}

	stored := toProps(canonical)
	require.IsType(t, "", stored["emailVerified"], "timestamps serialise to ISO strings")

	decoded := fromProps(stored)
	assert.Equal(t, "user-1", decoded["id"])
	assert.Equal(t, "Ada", decoded["name"])
	assert.Equal(t, int64(42), decoded["visits"])

	back, ok := decoded["emailVerified"].(time.Time)
	require.True(t, ok, "ISO string decodes back to a timestamp")
	assert.True(t, back.Equal(instant), "round-tripped instant must compare equal")
}

func TestFromValueDetectsISOTimestamps(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"utc", "2026-03-01T10:30:00Z", true},
		{"fractional", "2026-03-01T10:30:00.123Z", true},
		{"offset", "2026-03-01T10:30:00+02:00", true},
		{"date only", "2026-03-01", false},
		{"no zone", "2026-03-01T10:30:00", false},
		{"plain string", "not a date", false},
		// Matches the shape but is no valid instant: left as a string
		// rather than silently coerced.
		{"invalid month", "2026-13-01T10:30:00Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isTime := fromValue(tt.value).(time.Time)
			assert.Equal(t, tt.want, isTime)
		})
	}
}

func TestFromValueBigIntegers(t *testing.T) {
	small := big.NewInt(1 << 40)
	assert.Equal(t, int64(1<<40), fromValue(small))

	huge, ok := new(big.Int).SetString("92233720368547758080", 10)
	require.True(t, ok)
	assert.Equal(t, "92233720368547758080", fromValue(huge),
		"integers beyond int64 decode to their exact decimal string")
}

func TestFromPropsNilStaysNil(t *testing.T) {
	assert.Nil(t, fromProps(nil), "no record must not become an empty record")
}

func TestFromPropsIdempotent(t *testing.T) {
	stored := map[string]any{
		"when":  "2026-03-01T10:30:00Z",
		"count": int64(7),
		"note":  "hello",
	}

	once := fromProps(stored)
	twice := fromProps(once)
	assert.Equal(t, once, twice)
}

func TestFromValueUnwrapsNodes(t *testing.T) {
	node := dbtype.Node{Props: map[string]any{
		"id":      "user-2",
		"expires": "2026-03-01T10:30:00Z",
	}}

	decoded, ok := fromValue(node).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-2", decoded["id"])
	_, isTime := decoded["expires"].(time.Time)
	assert.True(t, isTime)
}
