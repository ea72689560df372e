package moment_test

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circlecal/internal/moment"
	"circlecal/internal/unit"
)

func TestStringAndParse(t *testing.T) {
	tests := []struct {
		text string
		want moment.Moment
		prec unit.Unit
	}{
		{"2024", moment.MustNew(2024), unit.Year},
		{"0007-03", moment.MustNew(7, 3), unit.Month},
		{"2024-02-29", moment.MustNew(2024, 2, 29), unit.Day},
		{"2024-02-29T13", moment.MustNew(2024, 2, 29, 13), unit.Hour},
		{"2024-02-29T13:05", moment.MustNew(2024, 2, 29, 13, 5), unit.Minute},
		{"2024-02-29T13:05:07", moment.MustNew(2024, 2, 29, 13, 5, 7), unit.Second},
		{"2024-02-29T13:05:07.000123", moment.MustNew(2024, 2, 29, 13, 5, 7, 123), unit.Microsecond},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.text, tc.want.String())

			got, err := moment.Parse(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.prec, got.Precision())
		})
	}

	assert.Equal(t, "", moment.Moment{}.String())
}

func TestParseShortFraction(t *testing.T) {
	got, err := moment.Parse("2024-02-29T13:05:07.5")
	require.NoError(t, err)
	us, ok := got.Field(unit.Microsecond)
	require.True(t, ok)
	assert.Equal(t, 500_000, us)
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "24", "2024-2", "2024/02/01", "2024-02-01 10:00", "yesterday"} {
		_, err := moment.Parse(in)
		assert.True(t, errors.Is(err, moment.ErrTypeCoercion), "%q: %v", in, err)
	}
	for _, in := range []string{"2023-02-29", "2024-13", "2024-01-01T24", "0000"} {
		_, err := moment.Parse(in)
		assert.True(t, errors.Is(err, moment.ErrRange), "%q: %v", in, err)
	}
}

func TestTextMarshaling(t *testing.T) {
	type doc struct {
		At   moment.Moment `json:"at"`
		Zero moment.Moment `json:"zero"`
	}

	data, err := json.Marshal(doc{At: moment.MustNew(2024, 6)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2024-06","zero":""}`, string(data))

	var back doc
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, moment.MustNew(2024, 6), back.At)
	assert.True(t, back.Zero.IsEmpty())

	assert.Error(t, json.Unmarshal([]byte(`{"at":"2024-02-30"}`), &back))
}
