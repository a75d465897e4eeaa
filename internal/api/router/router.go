package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medisync/internal/http/middleware"
	"github.com/wolfman30/medisync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger
	Roster *doctors.Roster

	Patients     *handlers.PatientsHandler
	Appointments *handlers.AppointmentsHandler
	Intake       *handlers.IntakeHandler
	Suggestions  *handlers.SuggestionsHandler
	Summary      *handlers.SummaryHandler

	// Ready reports whether the record store is reachable. Optional.
	Ready func(ctx context.Context) error

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
	CORSMaxAge         time.Duration
	OpsToken           string

	// Staff sign-in. At least one of StaffAuthSecret and CognitoUserPoolID
	// must be set for the /api routes to be mounted.
	StaffAuthSecret   string
	CognitoUserPoolID string
	CognitoClientID   string
	CognitoRegion     string

	RateLimitPerSecond float64
	RateLimitBurst     int
	// Stop ends the rate limiter's background sweep.
	Stop <-chan struct{}
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Roster == nil {
		cfg.Roster = doctors.DefaultRoster()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExtraHeaders:   cfg.CORSAllowedHeaders,
			MaxAge:         cfg.CORSMaxAge,
		}))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(nil))
		public.Get("/ready", healthHandler(cfg.Ready))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Patients != nil {
		r.Route("/ops", func(ops chi.Router) {
			ops.Use(requireOpsToken(cfg.OpsToken))
			ops.Post("/patients/seed", cfg.Patients.Seed)
			ops.Post("/records/refresh", cfg.Patients.Refresh)
		})
	}

	if cfg.StaffAuthSecret == "" && cfg.CognitoUserPoolID == "" {
		cfg.Logger.Warn("no staff auth configured; /api routes are disabled")
		return r
	}

	r.Route("/api", func(api chi.Router) {
		cognitoCfg := httpmiddleware.CognitoConfig{
			Region:     cfg.CognitoRegion,
			UserPoolID: cfg.CognitoUserPoolID,
			ClientID:   cfg.CognitoClientID,
		}
		api.Use(httpmiddleware.CognitoOrStaffJWT(cognitoCfg, cfg.StaffAuthSecret))
		if cfg.RateLimitPerSecond > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst, cfg.Stop))
		}

		// Shared clinic records, open to all signed-in staff.
		if cfg.Appointments != nil {
			api.Get("/doctors", cfg.Appointments.Doctors)
			api.Get("/appointments", cfg.Appointments.List)
		}
		if cfg.Patients != nil {
			api.Route("/patients", func(p chi.Router) {
				p.Get("/", cfg.Patients.List)
				p.Post("/", cfg.Patients.Create)
				p.Get("/{patientID}", cfg.Patients.Get)
				p.Patch("/{patientID}", cfg.Patients.Update)
			})
		}

		if cfg.Intake != nil {
			api.Route("/intake", func(desk chi.Router) {
				desk.Use(httpmiddleware.RequireGroup(httpmiddleware.FrontDeskGroup))
				desk.Get("/form", cfg.Intake.GetForm)
				desk.Patch("/form", cfg.Intake.EditForm)
				desk.Delete("/form", cfg.Intake.ResetForm)
				desk.Post("/transcript", cfg.Intake.Reconcile)
				desk.Post("/book", cfg.Intake.Book)
				desk.Post("/draft/restore", cfg.Intake.RestoreDraft)
				desk.Get("/transcripts", cfg.Intake.Transcripts)
				desk.Get("/voice", cfg.Intake.Voice)
			})
		}

		api.Route("/doctor", func(doc chi.Router) {
			doc.Use(httpmiddleware.RequireGroup(httpmiddleware.DoctorGroup))
			doc.Use(httpmiddleware.RequireDoctor(cfg.Roster, cfg.Logger))
			if cfg.Appointments != nil {
				doc.Get("/appointments", cfg.Appointments.Mine)
				doc.Patch("/appointments/{appointmentID}/status", cfg.Appointments.SetStatus)
			}
			if cfg.Summary != nil {
				doc.Get("/summary", cfg.Summary.Shift)
			}
			if cfg.Suggestions != nil {
				doc.Route("/suggestions", func(s chi.Router) {
					s.Get("/selection", cfg.Suggestions.Selection)
					s.Post("/selection", cfg.Suggestions.Select)
					s.Delete("/selection", cfg.Suggestions.ClearSelection)
					s.Post("/generate", cfg.Suggestions.Generate)
					s.Get("/session", cfg.Suggestions.Session)
					s.Patch("/session", cfg.Suggestions.Edit)
					s.Post("/commit", cfg.Suggestions.Commit)
				})
			}
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
