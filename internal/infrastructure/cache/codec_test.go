package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalTimestampTagged(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 4, 5, 123456789, time.UTC)

	b, err := Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"__kind__":"datetime","value":"2024-01-02T15:04:05.123456789Z"}`, string(b))

	var got time.Time
	require.NoError(t, Unmarshal(b, &got))
	assert.True(t, ts.Equal(got))
}

func TestTimestampRoundTripKeepsOffset(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2023, 12, 31, 23, 59, 59, 0, loc)

	b, err := Marshal(map[string]any{"at": ts})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, Unmarshal(b, &got))
	at, ok := got["at"].(time.Time)
	require.True(t, ok)
	assert.True(t, ts.Equal(at))
	_, offset := at.Zone()
	assert.Equal(t, -5*3600, offset)
}

type sample struct {
	When    time.Time   `json:"when"`
	Close   float64     `json:"close_equity"`
	Label   string      `json:"session,omitempty"`
	Skipped string      `json:"-"`
	Nested  []time.Time `json:"nested"`
	hidden  int
}

func TestStructRoundTrip(t *testing.T) {
	in := []sample{{
		When:    time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Close:   1234.5,
		Label:   "reg",
		Skipped: "gone",
		Nested:  []time.Time{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		hidden:  7,
	}}

	b, err := Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "gone")
	assert.Contains(t, string(b), `"close_equity":1234.5`)

	var out []sample
	require.NoError(t, Unmarshal(b, &out))
	require.Len(t, out, 1)
	assert.True(t, in[0].When.Equal(out[0].When))
	assert.Equal(t, 1234.5, out[0].Close)
	assert.Equal(t, "reg", out[0].Label)
	assert.Empty(t, out[0].Skipped)
	require.Len(t, out[0].Nested, 1)
	assert.True(t, in[0].Nested[0].Equal(out[0].Nested[0]))
	assert.Zero(t, out[0].hidden)
}

func TestUnmarshalUnknownKind(t *testing.T) {
	var v any
	err := Unmarshal([]byte(`{"__kind__":"decimal","value":"1.5"}`), &v)
	assert.Error(t, err)
}

func TestMarshalUnsupported(t *testing.T) {
	_, err := Marshal(map[string]any{"f": func() {}})
	assert.Error(t, err)

	_, err = Marshal(map[int]string{1: "a"})
	assert.Error(t, err)
}

func TestUnmarshalRequiresPointer(t *testing.T) {
	var v int
	assert.Error(t, Unmarshal([]byte(`1`), v))
}

func TestLargeIntegersSurvive(t *testing.T) {
	in := map[string]int64{"ref": 9007199254740993}

	b, err := Marshal(in)
	require.NoError(t, err)

	var out map[string]int64
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, int64(9007199254740993), out["ref"])

	var n uint64
	b, err = Marshal(uint64(18446744073709551615))
	require.NoError(t, err)
	require.NoError(t, Unmarshal(b, &n))
	assert.Equal(t, uint64(18446744073709551615), n)
}

func TestInterfaceTargetsKeepFloat64(t *testing.T) {
	b, err := Marshal(map[string]any{"close": 12.5, "count": 3})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, 12.5, out["close"])
	assert.Equal(t, float64(3), out["count"])
}

type Window struct {
	Start time.Time `json:"start"`
	Days  int       `json:"days"`
}

type Labelled struct {
	Name string `json:"name"`
}

type tagged struct {
	Window
	*Labelled
	Days  int    `json:"days"`
	Total int64  `json:"total"`
	Meta  Window `json:"meta"`
}

func TestEmbeddedStructsFlatten(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := tagged{
		Window:   Window{Start: start, Days: 5},
		Labelled: &Labelled{Name: "ytd"},
		Days:     7,
		Total:    9007199254740993,
		Meta:     Window{Start: start, Days: 1},
	}

	b, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":"ytd"`)
	assert.NotContains(t, string(b), `"Window"`)

	var out tagged
	require.NoError(t, Unmarshal(b, &out))
	assert.True(t, start.Equal(out.Start))
	assert.Equal(t, 7, out.Days, "outer field wins over the promoted one")
	require.NotNil(t, out.Labelled)
	assert.Equal(t, "ytd", out.Name)
	assert.Equal(t, int64(9007199254740993), out.Total)
	assert.Equal(t, 1, out.Meta.Days)
}

func TestNilEmbeddedPointerOmitted(t *testing.T) {
	b, err := Marshal(tagged{Days: 2})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "Labelled")

	var out tagged
	require.NoError(t, Unmarshal(b, &out))
	assert.Nil(t, out.Labelled)
	assert.Equal(t, 2, out.Days)
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	var v int
	assert.Error(t, Unmarshal([]byte(`1 2`), &v))
}
