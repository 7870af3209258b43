// Package awsauth loads AWS configuration for publishing run metrics.
package awsauth

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SessionName is the STS session name used when a role is assumed.
const SessionName = "feedparity"

var roleARNRe = regexp.MustCompile(`^arn:aws[a-z-]*:iam::\d{12}:role/.+$`)

// ValidateRoleARN checks that the ARN looks like a valid IAM role ARN.
func ValidateRoleARN(arn string) error {
	if !roleARNRe.MatchString(arn) {
		return fmt.Errorf("awsauth: invalid IAM role ARN: %q", arn)
	}
	return nil
}

// Options selects the region, shared profile and optional role to assume.
type Options struct {
	Region  string
	Profile string
	RoleARN string
}

// LoadOptions returns the config loader options for o.
func (o Options) LoadOptions() []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.Region),
	}
	if o.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(o.Profile))
	}
	return opts
}

// NewConfig creates an aws.Config from the default credential chain. When a
// role ARN is set, credentials are obtained by assuming it.
func NewConfig(ctx context.Context, o Options) (aws.Config, error) {
	if o.RoleARN != "" {
		if err := ValidateRoleARN(o.RoleARN); err != nil {
			return aws.Config{}, err
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, o.LoadOptions()...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsauth: load config: %w", err)
	}

	if o.RoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, o.RoleARN,
			func(ro *stscreds.AssumeRoleOptions) {
				ro.RoleSessionName = SessionName
			},
		))
	}
	return cfg, nil
}
