package dependency_container

import (
	"context"
	"errors"
	"testing"
	"time"

	appBlocklist "github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	lifecycleMocks "github.com/NeuralTrust/ThreatGate/pkg/app/blocklist/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	detectorMocks "github.com/NeuralTrust/ThreatGate/pkg/app/detector/mocks"
	recorderMocks "github.com/NeuralTrust/ThreatGate/pkg/app/securityevent/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig(detectorEnabled bool) *config.Config {
	cfg := &config.Config{}
	cfg.Detector.Enabled = detectorEnabled
	cfg.Detector.Interval = time.Minute
	cfg.Blocklist.SweepInterval = 5 * time.Minute
	cfg.Blocklist.SyncInterval = time.Minute
	cfg.SecurityEvents.RetentionCheck = time.Hour
	return cfg
}

func taskByName(t *testing.T, c *Container, cfg *config.Config, name string) func(context.Context) error {
	t.Helper()
	for _, task := range c.ScheduledTasks(cfg) {
		if task.Name == name {
			return task.Run
		}
	}
	t.Fatalf("task %s not scheduled", name)
	return nil
}

func TestScheduledTasks_DetectorOnlyWhenEnabled(t *testing.T) {
	c := &Container{}
	assert.Len(t, c.ScheduledTasks(testConfig(false)), 3)
	assert.Len(t, c.ScheduledTasks(testConfig(true)), 4)
}

func TestScheduledTasks_SyncCoversBlocksAndSignatures(t *testing.T) {
	lifecycle := new(lifecycleMocks.Lifecycle)
	det := new(detectorMocks.Detector)
	c := &Container{Lifecycle: lifecycle, Detector: det}
	cfg := testConfig(true)

	lifecycle.On("SyncPending", mock.Anything).Return(&appBlocklist.SyncReport{Synced: 2}, nil).Once()
	det.On("SyncPending", mock.Anything).Return(&detector.SyncReport{Synced: 1}, nil).Once()
	require.NoError(t, taskByName(t, c, cfg, SyncTask)(context.Background()))

	lifecycle.On("SyncPending", mock.Anything).Return(nil, errors.New("db down")).Once()
	assert.Error(t, taskByName(t, c, cfg, SyncTask)(context.Background()))

	lifecycle.AssertExpectations(t)
	det.AssertExpectations(t)
}

func TestScheduledTasks_RetentionTrims(t *testing.T) {
	recorder := new(recorderMocks.Recorder)
	c := &Container{Recorder: recorder}
	recorder.On("Trim", mock.Anything).Return(int64(12), nil).Once()

	require.NoError(t, taskByName(t, c, testConfig(false), RetentionTask)(context.Background()))
	recorder.AssertExpectations(t)
}
