// Package cloudwatch publishes per-run harness counts to CloudWatch so that
// parity can be tracked across runs.
package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/feedparity/feedparity-go/internal/domain"
)

// maxDatumsPerCall is the PutMetricData per-request limit.
const maxDatumsPerCall = 1000

// API is the subset of the CloudWatch client used by this package.
type API interface {
	PutMetricData(ctx context.Context, params *cw.PutMetricDataInput, optFns ...func(*cw.Options)) (*cw.PutMetricDataOutput, error)
}

// RunStats are the counts published for one run.
type RunStats struct {
	// Kind is "parity" or "golden".
	Kind              string
	MatchMode         domain.MatchMode
	Cases             int
	Passed            int
	Failed            int
	ReferenceFailures int
	CandidateFailures int
	Duration          time.Duration
}

// ParityStats summarizes parity results.
func ParityStats(results []domain.CaseResult, mode domain.MatchMode, d time.Duration) RunStats {
	s := RunStats{Kind: "parity", MatchMode: mode, Cases: len(results), Duration: d}
	for _, r := range results {
		if r.Match {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Reference.Failed {
			s.ReferenceFailures++
		}
		if r.Candidate.Failed {
			s.CandidateFailures++
		}
	}
	return s
}

// Client wraps the CloudWatch API.
type Client struct {
	api       API
	namespace string
	now       func() time.Time
}

// New creates a CloudWatch client from an AWS config.
func New(cfg aws.Config, namespace string) *Client {
	return NewFromAPI(cw.NewFromConfig(cfg), namespace)
}

// NewFromAPI creates a Client from an explicit API implementation (for testing).
func NewFromAPI(api API, namespace string) *Client {
	return &Client{api: api, namespace: namespace, now: time.Now}
}

// Publish writes s as CloudWatch metrics dimensioned by run kind.
func (c *Client) Publish(ctx context.Context, s RunStats) error {
	if c.namespace == "" {
		return errors.New("cloudwatch: namespace is required")
	}
	data := c.datums(s)
	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := c.api.PutMetricData(ctx, &cw.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return fmt.Errorf("cloudwatch: put metric data: %w", err)
		}
	}
	return nil
}

func (c *Client) datums(s RunStats) []cwtypes.MetricDatum {
	ts := aws.Time(c.now().UTC())
	dims := []cwtypes.Dimension{{Name: aws.String("Kind"), Value: aws.String(s.Kind)}}
	if s.MatchMode != "" {
		dims = append(dims, cwtypes.Dimension{Name: aws.String("MatchMode"), Value: aws.String(string(s.MatchMode))})
	}

	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Timestamp:  ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		}
	}
	data := []cwtypes.MetricDatum{
		count("Cases", s.Cases),
		count("CasesPassed", s.Passed),
		count("CasesFailed", s.Failed),
	}
	if s.Kind == "parity" {
		data = append(data,
			count("ReferenceFailures", s.ReferenceFailures),
			count("CandidateFailures", s.CandidateFailures),
		)
	}
	if s.Cases > 0 {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("PassRate"),
			Dimensions: dims,
			Timestamp:  ts,
			Unit:       cwtypes.StandardUnitPercent,
			Value:      aws.Float64(100 * float64(s.Passed) / float64(s.Cases)),
		})
	}
	data = append(data, cwtypes.MetricDatum{
		MetricName: aws.String("RunDuration"),
		Dimensions: dims,
		Timestamp:  ts,
		Unit:       cwtypes.StandardUnitSeconds,
		Value:      aws.Float64(s.Duration.Seconds()),
	})
	return data
}
