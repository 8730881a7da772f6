// Package inject provides realsense SDK doubles whose methods can be replaced per test.
package inject

import (
	"context"

	"go.viam.com/rscapture/realsense"
)

// Pipeline is an injected pipeline.
type Pipeline struct {
	realsense.Pipeline
	StartFunc         func(ctx context.Context, cfg *realsense.Config) error
	IsStartedFunc     func() bool
	WaitForFramesFunc func(ctx context.Context) (*realsense.FrameSet, error)
	ActiveProfileFunc func() (realsense.Profile, error)
	StopFunc          func() error
}

// Start calls the injected Start or the real version.
func (p *Pipeline) Start(ctx context.Context, cfg *realsense.Config) error {
	if p.StartFunc == nil {
		return p.Pipeline.Start(ctx, cfg)
	}
	return p.StartFunc(ctx, cfg)
}

// IsStarted calls the injected IsStarted or the real version.
func (p *Pipeline) IsStarted() bool {
	if p.IsStartedFunc == nil {
		return p.Pipeline.IsStarted()
	}
	return p.IsStartedFunc()
}

// WaitForFrames calls the injected WaitForFrames or the real version.
func (p *Pipeline) WaitForFrames(ctx context.Context) (*realsense.FrameSet, error) {
	if p.WaitForFramesFunc == nil {
		return p.Pipeline.WaitForFrames(ctx)
	}
	return p.WaitForFramesFunc(ctx)
}

// ActiveProfile calls the injected ActiveProfile or the real version.
func (p *Pipeline) ActiveProfile() (realsense.Profile, error) {
	if p.ActiveProfileFunc == nil {
		return p.Pipeline.ActiveProfile()
	}
	return p.ActiveProfileFunc()
}

// Stop calls the injected Stop or the real version.
func (p *Pipeline) Stop() error {
	if p.StopFunc == nil {
		return p.Pipeline.Stop()
	}
	return p.StopFunc()
}

// Backend is an injected backend.
type Backend struct {
	realsense.Backend
	NewPipelineFunc func() realsense.Pipeline
}

// NewPipeline calls the injected NewPipeline or the real version.
func (b *Backend) NewPipeline() realsense.Pipeline {
	if b.NewPipelineFunc == nil {
		return b.Backend.NewPipeline()
	}
	return b.NewPipelineFunc()
}
