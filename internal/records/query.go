package records

import (
	"cmp"
	"slices"
	"strings"
)

// SortField selects the patient list ordering key.
type SortField string

const (
	SortByActivity SortField = "activity"
	SortByName     SortField = "name"
	SortByAge      SortField = "age"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ListOptions controls ListPatients. The zero value sorts by most recent
// activity first with no search filter.
type ListOptions struct {
	Sort      SortField
	Direction SortDirection
	Search    string
}

func (o ListOptions) normalized() ListOptions {
	switch o.Sort {
	case SortByActivity, SortByName, SortByAge:
	default:
		o.Sort = SortByActivity
	}
	switch o.Direction {
	case Ascending, Descending:
	default:
		if o.Sort == SortByActivity {
			o.Direction = Descending
		} else {
			o.Direction = Ascending
		}
	}
	return o
}

// filterPatients keeps patients whose name, diagnosis or history contains
// term, ignoring case. An empty term keeps everything.
func filterPatients(patients []Patient, term string) []Patient {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return patients
	}
	out := make([]Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Diagnosis), term) ||
			strings.Contains(strings.ToLower(p.History), term) {
			out = append(out, p)
		}
	}
	return out
}

// sortPatients sorts in place. The sort is stable and breaks no ties, so equal
// keys keep their fetch order.
func sortPatients(patients []Patient, field SortField, dir SortDirection) {
	compare := func(a, b Patient) int {
		switch field {
		case SortByName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByAge:
			return cmp.Compare(a.Age, b.Age)
		default:
			return a.LastActivity.Compare(b.LastActivity)
		}
	}
	slices.SortStableFunc(patients, func(a, b Patient) int {
		if dir == Descending {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func sortAppointmentsNewestFirst(appts []Appointment) {
	slices.SortStableFunc(appts, func(a, b Appointment) int {
		return b.AppointmentDate.Compare(a.AppointmentDate)
	})
}
