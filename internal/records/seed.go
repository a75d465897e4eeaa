package records

import "time"

const placeholderAvatar = "https://placehold.co/100x100.png"

// DefaultSeedPatients returns the initial patient roster written into an empty
// store. The first patient carries a legacy freeform prescription with no
// timestamp header.
func DefaultSeedPatients(createdAt time.Time) []Patient {
	createdAt = createdAt.UTC()
	return []Patient{
		{
			ID:        "1",
			Name:      "Rohan Sharma",
			Age:       34,
			Diagnosis: "Common Cold, Viral Fever",
			History:   "No major illnesses. Occasional seasonal allergies.",
			AvatarURL: placeholderAvatar,
			Prescriptions: []string{
				"Paracetamol 500mg tablet (oral), twice a day for 3 days\nInstructions: Take with food\nCetirizine 10mg tablet (oral), once daily at bedtime for 5 days",
			},
			CreatedAt: createdAt,
		},
		{
			ID:            "2",
			Name:          "Priya Singh",
			Age:           28,
			Diagnosis:     "Migraine",
			History:       "History of migraines since adolescence. Allergic to penicillin.",
			AvatarURL:     placeholderAvatar,
			Prescriptions: []string{},
			CreatedAt:     createdAt,
		},
		{
			ID:            "3",
			Name:          "Amit Patel",
			Age:           45,
			Diagnosis:     "Hypertension",
			History:       "Diagnosed with hypertension 2 years ago. On regular medication.",
			AvatarURL:     placeholderAvatar,
			Prescriptions: []string{},
			CreatedAt:     createdAt,
		},
		{
			ID:            "4",
			Name:          "Sunita Reddy",
			Age:           52,
			Diagnosis:     "Type 2 Diabetes",
			History:       "Family history of diabetes. Diagnosed 5 years ago.",
			AvatarURL:     placeholderAvatar,
			Prescriptions: []string{},
			CreatedAt:     createdAt,
		},
	}
}
