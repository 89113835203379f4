// Package newrelic provides New Relic APM integration for monitoring.
package newrelic

import (
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/util"
)

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg *config.NewRelicConfig
	app *newrelic.Application
	mu  sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	// Wait for connection (up to 5 seconds)
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// IsEnabled returns true once Start has created the New Relic application,
// including when the initial connection wait timed out
func (a *Agent) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app != nil
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// RecordBlockAccepted records a committed block
func (a *Agent) RecordBlockAccepted(height uint64, miner string, txCount int) {
	a.RecordCustomEvent("BlockAccepted", map[string]interface{}{
		"height":       height,
		"miner":        miner,
		"transactions": txCount,
	})
}

// RecordSolutionRejected records a rejected submission
func (a *Agent) RecordSolutionRejected(miner, reason string) {
	a.RecordCustomEvent("SolutionRejected", map[string]interface{}{
		"miner":  miner,
		"reason": reason,
	})
}

// RecordMinerSpawned records a worker creation
func (a *Agent) RecordMinerSpawned(miner, owner string) {
	a.RecordCustomEvent("MinerSpawned", map[string]interface{}{
		"miner": miner,
		"owner": owner,
	})
}

// UpdateChainMetrics updates chain-wide metrics
func (a *Agent) UpdateChainMetrics(height uint64, difficulty uint32, mempoolSize int) {
	a.RecordCustomMetric("Custom/Chain/Height", float64(height))
	a.RecordCustomMetric("Custom/Chain/Difficulty", float64(difficulty))
	a.RecordCustomMetric("Custom/Chain/MempoolSize", float64(mempoolSize))
}
