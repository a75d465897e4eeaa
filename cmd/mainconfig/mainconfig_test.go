package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/medisync/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "us-east-1" {
		t.Fatalf("expected region us-east-1, got %s", awsCfg.Region)
	}

	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "us-east-1")
	if err != nil || ep.URL != "http://localhost:4566" {
		t.Fatalf("expected localstack endpoint for sqs, got %q (%v)", ep.URL, err)
	}

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint(bedrockruntime.ServiceID, "us-east-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected bedrock to fall through to the default resolver, got %v", err)
	}

	var opts s3.Options
	S3PathStyle(cfg)(&opts)
	if !opts.UsePathStyle {
		t.Fatalf("expected path-style s3 against localstack")
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "eu-west-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no custom resolver")
	}
}
