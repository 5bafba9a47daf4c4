package radar

import (
	"context"
	"time"

	"github.com/DioGolang/Zoned/pkg/metrics"
)

type ComputeNearbyMetricsDecorator struct {
	Next    ComputeNearbyUseCase
	Metrics metrics.Metrics
}

func (d *ComputeNearbyMetricsDecorator) Execute(ctx context.Context, input NearbyInput) (NearbyOutput, error) {
	start := time.Now()
	output, err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("ComputeNearby", err == nil, time.Since(start))
	if err == nil {
		d.Metrics.RecordRadarComputation("request", len(output.Nearby))
	}
	return output, err
}

type DirectoryNearbyMetricsDecorator struct {
	Next    DirectoryNearbyUseCase
	Metrics metrics.Metrics
}

func (d *DirectoryNearbyMetricsDecorator) Execute(ctx context.Context, input DirectoryNearbyInput) (NearbyOutput, error) {
	start := time.Now()
	output, err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("DirectoryNearby", err == nil, time.Since(start))
	if err == nil {
		d.Metrics.RecordRadarComputation("directory", len(output.Nearby))
	}
	return output, err
}

type UpdateLocationMetricsDecorator struct {
	Next    UpdateLocationUseCase
	Metrics metrics.Metrics
}

func (d *UpdateLocationMetricsDecorator) Execute(ctx context.Context, input UpdateLocationInput) error {
	start := time.Now()
	err := d.Next.Execute(ctx, input)
	d.Metrics.RecordUseCaseExecution("UpdateLocation", err == nil, time.Since(start))
	status := "success"
	if err != nil {
		status = "failure"
	}
	d.Metrics.RecordLocationPublished(status)
	return err
}
