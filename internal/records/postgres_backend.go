package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresBackend stores both collections in Postgres. Schema lives in
// migrations/.
type PostgresBackend struct {
	db pgxQuerier
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend initializes a backend on pgxpool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &PostgresBackend{db: pool}
}

func newPostgresBackendWithQuerier(db pgxQuerier) *PostgresBackend {
	if db == nil {
		panic("records: querier required")
	}
	return &PostgresBackend{db: db}
}

const (
	patientColumns       = `id, name, age, diagnosis, history, avatar_url, prescriptions, created_at`
	selectPatientColumns = `id, name, age, diagnosis, history, COALESCE(avatar_url, ''), prescriptions, created_at`
)

func (b *PostgresBackend) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := b.db.Query(ctx, `SELECT `+selectPatientColumns+` FROM patients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("records: list patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) GetPatient(ctx context.Context, id string) (Patient, error) {
	row := b.db.QueryRow(ctx, `SELECT `+selectPatientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, ErrPatientNotFound
	}
	return p, err
}

func (b *PostgresBackend) CreatePatient(ctx context.Context, p Patient) (string, error) {
	id := uuid.NewString()
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := b.db.Exec(ctx, query, id, p.Name, p.Age, p.Diagnosis, p.History, p.AvatarURL, p.Prescriptions, p.CreatedAt); err != nil {
		return "", fmt.Errorf("records: insert patient: %w", err)
	}
	return id, nil
}

func (b *PostgresBackend) UpdatePatient(ctx context.Context, id string, u PatientUpdate) error {
	query := `
		UPDATE patients SET
			name = COALESCE($2, name),
			age = COALESCE($3, age),
			diagnosis = COALESCE($4, diagnosis),
			history = COALESCE($5, history),
			avatar_url = COALESCE($6, avatar_url)
		WHERE id = $1
	`
	tag, err := b.db.Exec(ctx, query, id, u.Name, u.Age, u.Diagnosis, u.History, u.AvatarURL)
	if err != nil {
		return fmt.Errorf("records: update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (b *PostgresBackend) AppendPrescription(ctx context.Context, id string, text string) error {
	tag, err := b.db.Exec(ctx, `UPDATE patients SET prescriptions = array_append(prescriptions, $2) WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("records: append prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (b *PostgresBackend) SeedPatients(ctx context.Context, patients []Patient) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("records: begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	for _, p := range patients {
		rx := p.Prescriptions
		if rx == nil {
			rx = []string{}
		}
		if _, err := tx.Exec(ctx, query, p.ID, p.Name, p.Age, p.Diagnosis, p.History, p.AvatarURL, rx, p.CreatedAt); err != nil {
			return fmt.Errorf("records: seed patient %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("records: commit seed: %w", err)
	}
	return nil
}

func (b *PostgresBackend) ListAppointments(ctx context.Context) ([]Appointment, error) {
	query := `
		SELECT id, patient_name, patient_age, symptoms, doctor_id, doctor_name, appointment_date, status
		FROM appointments
		ORDER BY created_at, id
	`
	rows, err := b.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("records: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		if err := rows.Scan(&a.ID, &a.PatientName, &a.PatientAge, &a.Symptoms, &a.DoctorID, &a.DoctorName, &a.AppointmentDate, &status); err != nil {
			return nil, fmt.Errorf("records: scan appointment: %w", err)
		}
		a.Status = AppointmentStatus(status)
		a.AppointmentDate = a.AppointmentDate.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO appointments (id, patient_name, patient_age, symptoms, doctor_id, doctor_name, appointment_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := b.db.Exec(ctx, query, id, a.PatientName, a.PatientAge, a.Symptoms, a.DoctorID, a.DoctorName, a.AppointmentDate, string(a.Status)); err != nil {
		return "", fmt.Errorf("records: insert appointment: %w", err)
	}
	return id, nil
}

func (b *PostgresBackend) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) error {
	tag, err := b.db.Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("records: update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Diagnosis, &p.History, &p.AvatarURL, &p.Prescriptions, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Patient{}, err
		}
		return Patient{}, fmt.Errorf("records: scan patient: %w", err)
	}
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
