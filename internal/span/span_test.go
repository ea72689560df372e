package span_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rickb777/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circlecal/internal/moment"
	"circlecal/internal/span"
	"circlecal/internal/unit"
)

func mp(s string) moment.Moment { return moment.MustParse(s) }

func TestDefaultStop(t *testing.T) {
	s, err := span.New(mp("2024"))
	require.NoError(t, err)
	assert.Equal(t, mp("2025"), s.Stop())
	assert.Equal(t, unit.Year, s.Unit())
	assert.Equal(t, 12, s.Len())
	assert.Equal(t, 1, s.Count(unit.Year))
	assert.Equal(t, 366, s.Count(unit.Day))
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 999_999_000, time.UTC), s.End())
	assert.Equal(t, "[2024, 2025)", s.String())

	s = span.MustNew(mp("2024-01-31"))
	assert.Equal(t, mp("2024-02-01"), s.Stop())
	assert.Equal(t, 24, s.Len())
	assert.Equal(t, 24*time.Hour, s.Duration())
}

func TestExplicitStop(t *testing.T) {
	s, err := span.New(mp("2024-01"), span.WithStop(mp("2024-04")))
	require.NoError(t, err)
	assert.Equal(t, unit.Month, s.Unit())
	assert.Equal(t, 3, s.Count(unit.Month))
	assert.Equal(t, 31+29+31, s.Len())

	_, err = span.New(mp("2024-04"), span.WithStop(mp("2024-04")))
	assert.True(t, errors.Is(err, span.ErrSpanOrder))

	// 2024 and 2024-01-01 resolve to the same instant.
	_, err = span.New(mp("2024"), span.WithStop(mp("2024-01-01")))
	assert.True(t, errors.Is(err, span.ErrSpanOrder))

	_, err = span.New(mp("2024-04"), span.WithStop(mp("2024-03")))
	assert.True(t, errors.Is(err, span.ErrSpanOrder))

	_, err = span.New(mp("2024-04"), span.WithStop(moment.Moment{}))
	assert.True(t, errors.Is(err, moment.ErrMissingField))
}

func TestConstructorErrors(t *testing.T) {
	_, err := span.New(moment.Moment{})
	assert.True(t, errors.Is(err, moment.ErrMissingField))

	_, err = span.New(mp("2024"), span.WithStop(mp("2025")), span.WithDuration(time.Hour))
	assert.True(t, errors.Is(err, span.ErrConflictingStop))

	_, err = span.New(mp("9999"))
	assert.True(t, errors.Is(err, moment.ErrExhausted))

	_, err = span.New(mp("2024-03-01"), span.WithDuration(-time.Hour))
	assert.True(t, errors.Is(err, span.ErrSpanOrder))
}

func TestWithDuration(t *testing.T) {
	s, err := span.New(mp("2024-03-10"), span.WithDuration(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03-12"), s.Stop())
	assert.Equal(t, unit.Day, s.Unit())
	assert.Equal(t, 48, s.Len())

	s, err = span.New(mp("2024-03-10"), span.WithDuration(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03-10T01:30"), s.Stop())
	assert.Equal(t, unit.Day, s.Unit())
	assert.Equal(t, 2, s.Len())

	last, err := s.Index(-1)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03-10T01"), last.Start())
	assert.Equal(t, mp("2024-03-10T01:30"), last.Stop())
}

func TestWithPeriod(t *testing.T) {
	s, err := span.New(mp("2024-01"), span.WithPeriod(period.MustParse("P2M")))
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03"), s.Stop())
	assert.Equal(t, 2, s.Count(unit.Month))
	assert.Equal(t, 60, s.Len())

	s, err = span.New(mp("2024-01-15"), span.WithPeriod(period.MustParse("P1W")))
	require.NoError(t, err)
	assert.Equal(t, mp("2024-01-22"), s.Stop())
	assert.Equal(t, 7*24, s.Len())
}

func TestWithPeriodClampsMonthEnd(t *testing.T) {
	tests := []struct {
		start, period, stop string
	}{
		{"2024-01-31", "P1M", "2024-02-29"},
		{"2023-01-31", "P1M", "2023-02-28"},
		{"2024-03-31", "P1M", "2024-04-30"},
		{"2024-02-29", "P1Y", "2025-02-28"},
		{"2024-01-31", "P1M1D", "2024-03-01"},
		{"2024-01-31T22", "P1MT3H", "2024-03-01T01"},
		{"2024-10-31", "P4M", "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.start+"+"+tt.period, func(t *testing.T) {
			s, err := span.New(mp(tt.start), span.WithPeriod(period.MustParse(tt.period)))
			require.NoError(t, err)
			assert.Equal(t, mp(tt.stop), s.Stop())
		})
	}
}

func TestWithPeriodRejectsFractionalDays(t *testing.T) {
	_, err := span.New(mp("2024-01-15"), span.WithPeriod(period.MustParse("P1.5D")))
	assert.True(t, errors.Is(err, span.ErrImprecisePeriod))

	s, err := span.New(mp("2024-01-15"), span.WithPeriod(period.MustParse("PT1.5H")))
	require.NoError(t, err)
	assert.Equal(t, mp("2024-01-15T01:30"), s.Stop())
}

func TestMonthSlicesOfAYear(t *testing.T) {
	for year, days := range map[int]int{2024: 29, 2023: 28, 2000: 29, 1900: 28} {
		s := span.MustNew(moment.MustNew(year))
		feb, err := s.Index(1)
		require.NoError(t, err)
		assert.Equal(t, moment.MustNew(year, 2), feb.Start())
		assert.Equal(t, moment.MustNew(year, 3), feb.Stop())
		assert.Equal(t, unit.Month, feb.Unit())
		assert.Equal(t, days, feb.Len(), "february %d", year)

		dec, err := s.Index(11)
		require.NoError(t, err)
		assert.Equal(t, moment.MustNew(year+1, 1), dec.Stop())
		assert.Equal(t, unit.Month, dec.Unit())

		_, err = s.Index(12)
		assert.True(t, errors.Is(err, span.ErrIndex))
		_, err = s.Index(-13)
		assert.True(t, errors.Is(err, span.ErrIndex))
	}
}

func TestNegativeIndex(t *testing.T) {
	s := span.MustNew(mp("2024-02"))
	last, err := s.Index(-1)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-02-29"), last.Start())
	assert.Equal(t, mp("2024-03-01"), last.Stop())

	first, err := s.Index(-29)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-02-01"), first.Start())
}

func TestSlice(t *testing.T) {
	s := span.MustNew(mp("2024"))

	q2, err := s.Slice(3, 6)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-04"), q2.Start())
	assert.Equal(t, mp("2024-07"), q2.Stop())
	assert.Equal(t, 3, q2.Count(unit.Month))

	h2, err := s.Slice(-6, 12)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-07"), h2.Start())
	assert.Equal(t, mp("2025-01"), h2.Stop())

	for _, bounds := range [][2]int{{3, 3}, {5, 2}, {0, 13}, {-13, 2}} {
		_, err := s.Slice(bounds[0], bounds[1])
		assert.True(t, errors.Is(err, span.ErrIndex), "%v", bounds)
	}
}

func TestFineSlicing(t *testing.T) {
	day := span.MustNew(mp("2024-03-31"))
	assert.Equal(t, 24, day.Len())
	h, err := day.Index(23)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03-31T23"), h.Start())
	assert.Equal(t, mp("2024-04-01T00"), h.Stop())
	assert.Equal(t, 60, h.Len())

	sec := span.MustNew(mp("2024-03-31T10:00:59"))
	assert.Equal(t, 1_000_000, sec.Len())

	us := span.MustNew(mp("2024-03-31T10:00:59.000001"))
	assert.Equal(t, 0, us.Len())
	_, err = us.Index(0)
	assert.True(t, errors.Is(err, span.ErrIndex))
}

func TestClippedEdges(t *testing.T) {
	// Ends finer than the sub-span unit clip the first and last day.
	s, err := span.New(mp("2024-01-30T12"), span.WithStop(mp("2024-03-02T06")))
	require.NoError(t, err)
	assert.Equal(t, unit.Hour, s.Unit())
	assert.Equal(t, unit.Hour, s.Start().Precision())

	s, err = span.New(mp("2024-01"), span.WithStop(mp("2024-03-02T06")))
	require.NoError(t, err)
	assert.Equal(t, unit.Month, s.Unit())
	// January, February and a partial March 1 to 2 span 31 + 29 + 2 days.
	assert.Equal(t, 62, s.Len())
	last, err := s.Index(-1)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-03-02"), last.Start())
	assert.Equal(t, mp("2024-03-02T06"), last.Stop())

	s, err = span.New(mp("2024-01-15"), span.WithStop(mp("2024-03")))
	require.NoError(t, err)
	assert.Equal(t, unit.Month, s.Unit())
	assert.Equal(t, 17+29, s.Len())
	first, err := s.Index(0)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-01-15"), first.Start())
	assert.Equal(t, mp("2024-01-16"), first.Stop())
}

func TestIterationIsRestartable(t *testing.T) {
	s := span.MustNew(mp("2024"))

	var first, second []span.Span
	for sub := range s.All() {
		first = append(first, sub)
	}
	for sub := range s.All() {
		second = append(second, sub)
		if len(second) == 3 {
			break
		}
	}
	for sub := range s.All() {
		_ = sub
	}

	require.Len(t, first, 12)
	assert.Equal(t, first[:3], second)
	assert.Equal(t, first, s.Spans())

	for i, sub := range s.Indexed() {
		assert.Equal(t, moment.MustNew(2024, i+1), sub.Start())
	}
}

func TestSubSpansTileTheParent(t *testing.T) {
	for _, text := range []string{"2023", "2024-02", "2024-12-31", "2024-12-31T23"} {
		s := span.MustNew(mp(text))
		subs := s.Spans()
		require.Len(t, subs, s.Len(), text)
		assert.Equal(t, 0, subs[0].Start().Compare(s.Start()), text)
		assert.Equal(t, 0, subs[len(subs)-1].Stop().Compare(s.Stop()), text)
		for i := 1; i < len(subs); i++ {
			assert.Equal(t, subs[i-1].Stop(), subs[i].Start(), "%s #%d", text, i)
		}
	}
}

func TestContainsAndLocate(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	y2023 := span.MustNew(mp("2023"))
	y2024 := span.MustNew(mp("2024"))
	y2025 := span.MustNew(mp("2025"))

	assert.Equal(t, 1, y2023.Compare(moment.Time(jan1)))
	assert.True(t, y2024.Contains(moment.Time(jan1)))
	assert.Equal(t, -1, y2025.Compare(moment.Time(jan1)))
	assert.True(t, span.MustNew(mp("2024-01")).Contains(moment.Time(jan1)))
	assert.False(t, span.MustNew(mp("2024-02")).Contains(moment.Time(jan1)))
	assert.False(t, span.MustNew(mp("2024-02-01")).Contains(moment.Time(jan1)))

	i, err := y2024.Locate(moment.Time(time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, 6, i)

	i, err = span.MustNew(mp("2024-02")).Locate(mp("2024-02-29T23:59"))
	require.NoError(t, err)
	assert.Equal(t, 28, i)

	_, err = y2024.Locate(moment.Time(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, errors.Is(err, span.ErrIndex))
}

func TestOverlaps(t *testing.T) {
	feb := span.MustNew(mp("2024-02"))
	assert.True(t, feb.Overlaps(span.MustNew(mp("2024"))))
	assert.True(t, feb.Overlaps(span.MustNew(mp("2024-02-29"))))
	assert.False(t, feb.Overlaps(span.MustNew(mp("2024-03"))))
	assert.False(t, feb.Overlaps(span.MustNew(mp("2024-01-31"))))
}

func TestParseOptions(t *testing.T) {
	opts, err := span.ParseOptions("", "36h", "")
	require.NoError(t, err)
	s, err := span.New(mp("2024-02-28"), opts...)
	require.NoError(t, err)
	assert.Equal(t, mp("2024-02-29T12"), s.Stop())

	opts, err = span.ParseOptions("", "", "P1Y")
	require.NoError(t, err)
	s, err = span.New(mp("2024-02-29"), opts...)
	require.NoError(t, err)
	assert.Equal(t, mp("2025-02-28"), s.Stop())

	opts, err = span.ParseOptions("2024-06", "1h", "")
	require.NoError(t, err)
	_, err = span.New(mp("2024-02"), opts...)
	assert.True(t, errors.Is(err, span.ErrConflictingStop))

	for _, bad := range [][3]string{{"2024-13", "", ""}, {"", "soon", ""}, {"", "", "monthly"}} {
		_, err := span.ParseOptions(bad[0], bad[1], bad[2])
		assert.Error(t, err, "%v", bad)
	}
}
