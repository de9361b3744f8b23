package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendei/internal/clock"
	"agendei/internal/model"
)

var loc = clock.LoadLocation(clock.DefaultTimezone)

// March 2026: the 9th is a Monday.
func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func hm(day, h, m int) time.Time {
	return time.Date(2026, 3, day, h, m, 0, 0, loc)
}

func hours(workingDays string) model.Hours {
	return model.Hours{
		OpeningTime:         "09:00",
		ClosingTime:         "19:00",
		SaturdayClosingTime: "14:00",
		WorkingDays:         workingDays,
	}
}

func TestWeekdayIndex(t *testing.T) {
	assert.Equal(t, 0, WeekdayIndex(date(9)))
	assert.Equal(t, 5, WeekdayIndex(date(14)))
	assert.Equal(t, 6, WeekdayIndex(date(15)))
}

func TestResolve_PhraseRanges(t *testing.T) {
	tests := []struct {
		name        string
		workingDays string
		openDays    []int // day of month, 9..15
	}{
		{"tuesday to saturday", "Terça a Sábado", []int{10, 11, 12, 13, 14}},
		{"monday to friday", "Segunda a Sexta", []int{9, 10, 11, 12, 13}},
		{"monday to saturday", "segunda a sabado", []int{9, 10, 11, 12, 13, 14}},
		{"tuesday to friday", "Terça a Sexta", []int{10, 11, 12, 13}},
		{"english phrase", "Tuesday to Saturday", []int{10, 11, 12, 13, 14}},
		{"phrase inside longer text", "Atendemos de terça a sexta-feira", []int{10, 11, 12, 13}},
	}

	r := NewResolver(loc, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for d := 9; d <= 15; d++ {
				_, open := r.Resolve(hours(tt.workingDays), date(d))
				assert.Equal(t, contains(tt.openDays, d), open, "day %d", d)
			}
		})
	}
}

func TestResolve_SaturdayClosesEarly(t *testing.T) {
	r := NewResolver(loc, nil)

	w, open := r.Resolve(hours("Terça a Sábado"), date(14))
	require.True(t, open)
	assert.Equal(t, hm(14, 9, 0), w.Start)
	assert.Equal(t, hm(14, 14, 0), w.End)
	assert.Nil(t, w.Excluded)

	w, open = r.Resolve(hours("Terça a Sábado"), date(11))
	require.True(t, open)
	assert.Equal(t, hm(11, 19, 0), w.End)
}

func TestResolve_SaturdayWithoutOverrideUsesClosingTime(t *testing.T) {
	r := NewResolver(loc, nil)
	h := hours("Segunda a Sábado")
	h.SaturdayClosingTime = ""

	w, open := r.Resolve(h, date(14))
	require.True(t, open)
	assert.Equal(t, hm(14, 19, 0), w.End)
}

func TestResolve_UnrecognizedDescriptorFallsBack(t *testing.T) {
	r := NewResolver(loc, nil)
	h := hours("Domingo")

	_, open := r.Resolve(h, date(15))
	assert.False(t, open, "sunday is outside the default range")

	_, open = r.Resolve(h, date(9))
	assert.False(t, open, "monday is outside the default range")

	w, open := r.Resolve(h, date(11))
	require.True(t, open)
	assert.Equal(t, hm(11, 9, 0), w.Start)
	assert.Equal(t, hm(11, 19, 0), w.End)

	_, open = r.Resolve(h, date(14))
	assert.False(t, open, "saturday is not mentioned by the descriptor")

	empty := hours("")
	_, open = r.Resolve(empty, date(14))
	assert.False(t, open, "an empty descriptor keeps saturday closed")
	_, open = r.Resolve(empty, date(13))
	assert.True(t, open, "an empty descriptor opens tuesday to friday")
}

func TestResolve_MalformedTimesDegradeToDefaultWindow(t *testing.T) {
	r := NewResolver(loc, nil)
	h := hours("Terça a Sábado")
	h.OpeningTime = "nove horas"

	w, open := r.Resolve(h, date(10))
	require.True(t, open)
	assert.Equal(t, hm(10, 9, 0), w.Start)
	assert.Equal(t, hm(10, 19, 0), w.End)

	h = hours("Terça a Sábado")
	h.ClosingTime = ""
	w, open = r.Resolve(h, date(10))
	require.True(t, open)
	assert.Equal(t, hm(10, 19, 0), w.End)
}

func TestResolve_MixedPresets(t *testing.T) {
	r := NewResolver(loc, nil)
	h := hours("Carol: Terça a Sábado (Misto)")

	_, open := r.Resolve(h, date(9))
	assert.False(t, open)
	_, open = r.Resolve(h, date(15))
	assert.False(t, open)

	w, open := r.Resolve(h, date(10))
	require.True(t, open)
	assert.Equal(t, hm(10, 19, 0), w.End)
	require.NotNil(t, w.Excluded)
	assert.Equal(t, hm(10, 12, 0), w.Excluded.Start)
	assert.Equal(t, hm(10, 13, 0), w.Excluded.End)

	w, open = r.Resolve(h, date(12))
	require.True(t, open)
	assert.Equal(t, hm(12, 20, 0), w.End, "thursday closes later")

	w, open = r.Resolve(h, date(14))
	require.True(t, open)
	assert.Equal(t, hm(14, 14, 0), w.End, "saturday keeps the business saturday closing")

	w, open = r.Resolve(hours("Carol: Segunda a Sábado (Misto)"), date(9))
	require.True(t, open)
	assert.NotNil(t, w.Excluded)
}

func TestResolve_LunchOnlyForMixedSchedules(t *testing.T) {
	r := NewResolver(loc, nil)
	for _, desc := range []string{"Terça a Sábado", "Terça a Sábado (Misto)", "carol: terça a sábado (misto) extra"} {
		w, open := r.Resolve(hours(desc), date(10))
		require.True(t, open, desc)
		assert.Nil(t, w.Excluded, desc)
	}
}

func TestResolve_ExplicitWeeklyTable(t *testing.T) {
	r := NewResolver(loc, nil)
	weekly := model.Weekly{}
	for i := range weekly {
		weekly[i] = model.Day{Closed: true}
	}
	weekly[6] = model.Day{Open: "10:00", Close: "16:00", LunchStart: "13:00", LunchEnd: "13:30"}

	h := hours("Terça a Sábado")
	h.Weekly = &weekly

	_, open := r.Resolve(h, date(10))
	assert.False(t, open, "explicit table replaces the descriptor")

	w, open := r.Resolve(h, date(15))
	require.True(t, open)
	assert.Equal(t, hm(15, 10, 0), w.Start)
	assert.Equal(t, hm(15, 16, 0), w.End)
	require.NotNil(t, w.Excluded)
	assert.Equal(t, hm(15, 13, 30), w.Excluded.End)
}

func TestResolve_ConfiguredPresetOverridesBuiltin(t *testing.T) {
	custom := mixed(map[int]string{monday: "17:00"})
	r := NewResolver(loc, map[string]model.Weekly{"Carol: Terça a Sábado (Misto)": custom})

	w, open := r.Resolve(hours("Carol: Terça a Sábado (Misto)"), date(9))
	require.True(t, open)
	assert.Equal(t, hm(9, 17, 0), w.End)

	_, open = r.Resolve(hours("Carol: Terça a Sábado (Misto)"), date(10))
	assert.False(t, open)
}

func TestResolve_Holidays(t *testing.T) {
	r := NewResolver(loc, nil)
	h := hours("Terça a Sábado")
	h.Holidays = []string{"2026-03-11"}

	_, open := r.Resolve(h, date(11))
	assert.False(t, open)
	_, open = r.Resolve(h, date(12))
	assert.True(t, open)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "terca a sabado", normalize("  Terça   a SÁBADO "))
}

func contains(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
