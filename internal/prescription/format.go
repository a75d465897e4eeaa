package prescription

import (
	"strconv"
	"strings"
	"time"
)

// FormatVersion identifies the layout written by Format and read by
// ParseTimestamp. Both sides change together. Version 2 adds the offset
// suffix for ambiguous wall-clock minutes; version 1 headers still parse.
const FormatVersion = 2

const (
	headerPrefix = "Prescribed on:"
	dateLayout   = "2006-01-02"
	timeLayout   = "15:04"
	offsetLayout = "-0700"

	noMedicationsLine = "No specific medications suggested."
)

// Header renders the timestamp line for the given instant, in its own location.
// When the wall-clock minute occurs twice in that location (a daylight saving
// fall-back), the UTC offset is appended so the instant stays recoverable.
func Header(at time.Time) string {
	line := headerPrefix + " " + at.Format(dateLayout) + " at " + at.Format(timeLayout)
	if !wallClockResolves(at) {
		line += " " + at.Format(offsetLayout)
	}
	return line
}

// wallClockResolves reports whether at's wall-clock minute names exactly one
// instant in its location, and that instant is at's minute.
func wallClockResolves(at time.Time) bool {
	y, mo, d := at.Date()
	h, mi, _ := at.Clock()
	resolved := time.Date(y, mo, d, h, mi, 0, 0, at.Location())
	if !resolved.Equal(at.Truncate(time.Minute)) {
		return false
	}
	wall := at.Format(dateLayout + " " + timeLayout)
	for _, shift := range []time.Duration{-time.Hour, time.Hour} {
		if resolved.Add(shift).Format(dateLayout+" "+timeLayout) == wall {
			return false
		}
	}
	return true
}

// Format renders a suggestion into the canonical text fragment. The fragment
// always starts with the header for at; gc must be the context captured when
// the suggestion was generated.
func Format(s Suggestion, gc GenerationContext, at time.Time) string {
	s = s.Normalize()

	var b strings.Builder
	b.WriteString(Header(at))
	b.WriteByte('\n')
	if v := strings.TrimSpace(gc.Symptoms); v != "" {
		b.WriteString("Symptoms: " + v + "\n")
	}
	if v := strings.TrimSpace(gc.Diagnosis); v != "" {
		b.WriteString("Diagnosis: " + v + "\n")
	}

	b.WriteByte('\n')
	if len(s.Medications) == 0 {
		b.WriteString(noMedicationsLine + "\n")
	} else {
		b.WriteString("Medications:\n")
		for i, m := range s.Medications {
			b.WriteString(strconv.Itoa(i+1) + ". " + medicationLine(m) + "\n")
			if m.AdditionalInstructions != "" {
				b.WriteString("   Instructions: " + m.AdditionalInstructions + "\n")
			}
		}
	}

	section(&b, "General Instructions", s.GeneralInstructions)
	section(&b, "Follow-up", s.FollowUp)
	section(&b, "Additional Notes", s.AdditionalNotes)

	return strings.TrimRight(b.String(), "\n")
}

func medicationLine(m Medication) string {
	line := m.Name
	if m.Dosage != "" {
		line += " " + m.Dosage
	}
	if m.Route != "" {
		line += " (" + m.Route + ")"
	}
	if m.Frequency != "" {
		line += ", " + m.Frequency
	}
	if m.Duration != "" {
		line += " for " + m.Duration
	}
	return line
}

func section(b *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	b.WriteString("\n" + title + ":\n" + body + "\n")
}
