package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/pkg/logging"
)

func TestWorkbench_GenerateOpensSession(t *testing.T) {
	gen := &stubGenerator{result: feverSuggestion()}
	w := NewWorkbench(testDoctor, gen, logging.Discard())
	w.Select(records.Patient{ID: "p-1", Name: "Ravi Kumar", Diagnosis: "Viral fever", Prescriptions: []string{"Paracetamol PRN"}})

	s, err := w.Generate(context.Background(), GenerationInput{Symptoms: "fever and chills"})
	require.NoError(t, err)
	assert.Same(t, s, w.Session())

	req := gen.last()
	assert.Equal(t, "fever and chills", req.Symptoms)
	assert.Equal(t, "Viral fever", req.Diagnosis, "diagnosis falls back to the record")
	assert.Equal(t, noHistory, req.PatientHistory)
	assert.Equal(t, []string{"Paracetamol PRN"}, req.PriorPrescriptions)
	assert.Equal(t, "Dr. Alisha Mehta", req.DoctorName)
}

func TestWorkbench_RequiresSelectionAndDoctor(t *testing.T) {
	gen := &stubGenerator{result: feverSuggestion()}
	_, err := NewWorkbench(testDoctor, gen, logging.Discard()).Generate(context.Background(), GenerationInput{})
	assert.ErrorIs(t, err, ErrNoPatient)

	_, err = NewWorkbench(doctors.Doctor{}, gen, logging.Discard()).Generate(context.Background(), GenerationInput{})
	assert.ErrorIs(t, err, ErrNoDoctor)
	assert.Zero(t, gen.calls())
}

func TestWorkbench_GeneratorFailure(t *testing.T) {
	w := NewWorkbench(testDoctor, &stubGenerator{err: errors.New("model overloaded")}, logging.Discard())
	w.Select(records.Patient{ID: "p-1"})

	_, err := w.Generate(context.Background(), GenerationInput{Symptoms: "fever"})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Nil(t, w.Session())
}

func TestWorkbench_SelectingAnotherPatientSupersedes(t *testing.T) {
	gen := &stubGenerator{result: feverSuggestion(), block: make(chan struct{})}
	w := NewWorkbench(testDoctor, gen, logging.Discard())
	w.Select(records.Patient{ID: "p-1"})

	done := make(chan error, 1)
	go func() {
		_, err := w.Generate(context.Background(), GenerationInput{Symptoms: "fever"})
		done <- err
	}()
	require.Eventually(t, func() bool { return gen.calls() == 1 }, time.Second, 5*time.Millisecond)

	w.Select(records.Patient{ID: "p-2"})
	close(gen.block)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("generate did not return")
	}
	assert.Nil(t, w.Session())
	sel, ok := w.Selection()
	require.True(t, ok)
	assert.Equal(t, "p-2", sel.ID)
}

func TestWorkbench_ReselectKeepsSession(t *testing.T) {
	w := NewWorkbench(testDoctor, &stubGenerator{result: feverSuggestion()}, logging.Discard())
	w.Select(records.Patient{ID: "p-1", Name: "Ravi"})
	s, err := w.Generate(context.Background(), GenerationInput{Symptoms: "fever"})
	require.NoError(t, err)

	w.Select(records.Patient{ID: "p-1", Name: "Ravi Kumar"})
	assert.Same(t, s, w.Session())
	sel, _ := w.Selection()
	assert.Equal(t, "Ravi Kumar", sel.Name)

	w.ClearSelection()
	assert.Nil(t, w.Session())
	_, ok := w.Selection()
	assert.False(t, ok)
}

func TestWorkbench_CommitAdoptsPromotedPatient(t *testing.T) {
	store := records.NewStore(records.NewMemoryBackend(), logging.Discard())
	temp := records.TemporaryPatientFromAppointment(records.Appointment{ID: "42", PatientName: "Meera Iyer", Symptoms: "rash"}, time.Now())

	w := NewWorkbench(testDoctor, &stubGenerator{result: feverSuggestion()}, logging.Discard())
	w.Select(temp)
	_, err := w.Generate(context.Background(), GenerationInput{Symptoms: "rash", Diagnosis: "Contact dermatitis"})
	require.NoError(t, err)

	updated, err := w.Commit(context.Background(), NewCommitter(store, logging.Discard()))
	require.NoError(t, err)
	assert.False(t, updated.IsTemporary())

	sel, ok := w.Selection()
	require.True(t, ok)
	assert.Equal(t, updated.ID, sel.ID)
	assert.Nil(t, w.Session())

	_, err = w.Commit(context.Background(), NewCommitter(store, logging.Discard()))
	assert.ErrorIs(t, err, ErrNoSession)

	named, err := store.PatientsNamed(context.Background(), "Meera Iyer")
	require.NoError(t, err)
	assert.Len(t, named, 1)
}

func TestRegistry_OneWorkbenchPerDoctor(t *testing.T) {
	r := NewRegistry(&stubGenerator{}, logging.Discard())
	a := r.For(testDoctor)
	assert.Same(t, a, r.For(testDoctor))
	assert.NotSame(t, a, r.For(doctors.Doctor{ID: "doc2", Name: "Dr. Vikram Rao"}))
}
