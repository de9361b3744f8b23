package schedule

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"agendei/internal/model"
)

const (
	monday = iota
	tuesday
	wednesday
	thursday
	friday
	saturday
	sunday
)

// dayRange is a canonical working-days phrase and the weekdays it opens.
type dayRange struct {
	phrases  []string
	from, to int
}

// Ordered most specific first; matched by containment on the normalized descriptor.
var dayRanges = []dayRange{
	{phrases: []string{"segunda a sexta", "monday to friday"}, from: monday, to: friday},
	{phrases: []string{"segunda a sabado", "monday to saturday"}, from: monday, to: saturday},
	{phrases: []string{"terca a sabado", "tuesday to saturday"}, from: tuesday, to: saturday},
	{phrases: []string{"terca a sexta", "tuesday to friday"}, from: tuesday, to: friday},
}

// defaultRange applies when no phrase matches.
var defaultRange = dayRanges[2]

var mentions = map[int][]string{
	saturday: {"sabado", "saturday"},
	sunday:   {"domingo", "sunday"},
	monday:   {"segunda", "monday"},
}

func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

func matchRange(normalized string) dayRange {
	for _, r := range dayRanges {
		for _, p := range r.phrases {
			if strings.Contains(normalized, p) {
				return r
			}
		}
	}
	return defaultRange
}

func mentionsDay(normalized string, day int) bool {
	for _, word := range mentions[day] {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

// fromDescriptor compiles a phrase descriptor into a weekly table. Open days
// keep empty times so the business opening/closing times apply.
func fromDescriptor(descriptor string) model.Weekly {
	normalized := normalize(descriptor)
	r := matchRange(normalized)

	var w model.Weekly
	for day := range w {
		w[day].Closed = day < r.from || day > r.to
	}

	// Saturday, Sunday and Monday open only when the descriptor names them,
	// even under the default range.
	for day := range mentions {
		if !mentionsDay(normalized, day) {
			w[day].Closed = true
		}
	}
	return w
}
