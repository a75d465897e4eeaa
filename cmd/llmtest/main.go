package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/medisync/cmd/mainconfig"
	"github.com/wolfman30/medisync/internal/app/bootstrap"
	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/intake"
	"github.com/wolfman30/medisync/pkg/logging"
)

// llmtest runs one intake transcript through the configured providers and
// prints the extracted fields. Useful for checking credentials and prompts.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := appconfig.Load()
	logger := logging.New("debug")

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	collaborators, err := bootstrap.BuildCollaborators(ctx, cfg, &awsCfg, nil, logger)
	if err != nil {
		log.Fatalf("build llm clients: %v", err)
	}
	defer collaborators.Close()

	transcript := "Book an appointment for Sarah Connor, she is 35, sore throat and a mild fever, with Doctor Rao next Tuesday at 2:30 PM"
	if len(os.Args) > 1 {
		transcript = os.Args[1]
	}

	extractor := intake.NewLLMExtractor(collaborators.Extraction, int32(cfg.LLMMaxTokens), logger)
	start := time.Now()
	ex, err := extractor.Extract(ctx, intake.ExtractionRequest{
		Transcript:  transcript,
		CurrentDate: time.Now().Format("2006-01-02"),
	})
	if err != nil {
		log.Fatalf("extraction failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
	}

	fmt.Printf("extracted in %v\n", time.Since(start).Round(time.Millisecond))
	printField("patientName", ex.PatientName)
	printField("symptoms", ex.Symptoms)
	printField("doctorQuery", ex.DoctorQuery)
	printField("appointmentDate", ex.AppointmentDate)
	printField("appointmentTime", ex.AppointmentTime)
	if ex.PatientAge != nil {
		fmt.Printf("  %-16s %d\n", "patientAge", *ex.PatientAge)
	}
}

func printField(name string, v *string) {
	if v == nil {
		fmt.Printf("  %-16s (none)\n", name)
		return
	}
	fmt.Printf("  %-16s %s\n", name, *v)
}
