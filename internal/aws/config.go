package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Options tunes the shared SDK configuration. EndpointOverride points every
// client at a local emulator such as LocalStack.
type Options struct {
	Region           string
	EndpointOverride string
}

// LoadAWSConfig loads the default credential chain with the given options.
func LoadAWSConfig(ctx context.Context, opts Options) (sdkaws.Config, error) {
	region := opts.Region
	if region == "" {
		region = DefaultRegion // default fallback
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.EndpointOverride != "" {
		loaders = append(loaders, config.WithBaseEndpoint(opts.EndpointOverride))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}
