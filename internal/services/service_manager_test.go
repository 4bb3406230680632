package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) manager(config ServiceManagerConfig) ServiceManager {
	return NewServiceManager(f.db, f.repo, f.logger, f.validator, ServiceDependencies{
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Blobs:     f.blobs,
		Templates: f.templates,
		Renderer:  f.renderer,
	}, config)
}

func TestServiceManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sm := f.manager(DefaultServiceManagerConfig())

	assert.Panics(t, func() { sm.Course() })
	assert.Error(t, sm.HealthCheck(ctx))

	require.NoError(t, sm.Initialize(ctx))
	require.NoError(t, sm.Initialize(ctx))
	assert.NotNil(t, sm.Course())
	assert.NotNil(t, sm.Registration())
	assert.NotNil(t, sm.Certificate())
	assert.NotNil(t, sm.Report())
	assert.NoError(t, sm.HealthCheck(ctx))

	require.NoError(t, sm.Shutdown(ctx))
	assert.Error(t, sm.HealthCheck(ctx))
}

func TestServiceManager_RejectsBadConfig(t *testing.T) {
	f := newFixture(t)

	err := f.manager(ServiceManagerConfig{ReconcileConcurrency: 0, DefaultTimeout: time.Second}).Initialize(context.Background())
	assert.ErrorContains(t, err, "reconcile concurrency")

	sm := NewServiceManager(f.db, f.repo, f.logger, f.validator, ServiceDependencies{}, DefaultServiceManagerConfig())
	err = sm.Initialize(context.Background())
	assert.ErrorContains(t, err, "event publisher is required")
	assert.ErrorContains(t, err, "blob store is required")
}
