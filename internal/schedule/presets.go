package schedule

import "agendei/internal/model"

const (
	lunchStart = "12:00"
	lunchEnd   = "13:00"
)

// BuiltinPresets are the composite "mixed" schedules selected by exact
// descriptor match. Their per-weekday closing times are business data.
func BuiltinPresets() map[string]model.Weekly {
	return map[string]model.Weekly{
		"Carol: Terça a Sábado (Misto)": mixed(
			map[int]string{tuesday: "", wednesday: "", thursday: "20:00", friday: "20:00", saturday: ""},
		),
		"Carol: Segunda a Sábado (Misto)": mixed(
			map[int]string{monday: "", tuesday: "", wednesday: "", thursday: "20:00", friday: "20:00", saturday: ""},
		),
	}
}

// mixed builds a table opening the given days (value = closing override) with the fixed lunch break.
func mixed(open map[int]string) model.Weekly {
	var w model.Weekly
	for day := range w {
		closeAt, ok := open[day]
		if !ok {
			w[day] = model.Day{Closed: true}
			continue
		}
		w[day] = model.Day{Close: closeAt, LunchStart: lunchStart, LunchEnd: lunchEnd}
	}
	return w
}
