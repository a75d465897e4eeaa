package records

import (
	"time"

	"github.com/wolfman30/medisync/internal/prescription"
	"github.com/wolfman30/medisync/pkg/logging"
)

// effectiveActivity is the latest of createdAt and every timestamp parsed out
// of the prescription entries. Entries without a header are expected (legacy
// freeform text) and ignored; malformed headers are logged and skipped.
func effectiveActivity(p Patient, loc *time.Location, logger *logging.Logger, onMalformed func()) time.Time {
	latest := p.CreatedAt
	for i, entry := range p.Prescriptions {
		ts, status := prescription.ParseTimestamp(entry, loc)
		switch status {
		case prescription.StatusFound:
			if ts.After(latest) {
				latest = ts
			}
		case prescription.StatusMalformed:
			logger.Warn("skipping malformed prescription timestamp", "patient_id", p.ID, "entry_index", i)
			if onMalformed != nil {
				onMalformed()
			}
		}
	}
	return latest
}
