package normflow

import (
	"fmt"
	"log/slog"
)

// ModelConfig configures a Model. Prior, Flow, and Action are required;
// Device defaults to SingleDevice and Logger to slog.Default().
type ModelConfig struct {
	Prior  Prior
	Flow   FlowNetwork
	Action Action
	Device DeviceHandler
	Logger *slog.Logger
}

// Model is the composition root binding a prior, a flow network, and an
// action, and exposing the training, sampling, and MCMC components that
// share them. The Model owns no mutable state of its own; the attached
// components back-reference it for prior, flow, action, and device rank.
type Model struct {
	Prior  Prior
	Flow   FlowNetwork
	Action Action
	Device DeviceHandler

	Fitter    *Fitter
	Posterior *Posterior
	MCMC      *MCMCSampler

	logger *slog.Logger
}

// NewModel creates a Model from the given config.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Prior == nil {
		return nil, fmt.Errorf("%w: Prior is required", ErrConfiguration)
	}
	if cfg.Flow == nil {
		return nil, fmt.Errorf("%w: Flow is required", ErrConfiguration)
	}
	if cfg.Action == nil {
		return nil, fmt.Errorf("%w: Action is required", ErrConfiguration)
	}

	m := &Model{
		Prior:  cfg.Prior,
		Flow:   cfg.Flow,
		Action: cfg.Action,
		Device: cfg.Device,
		logger: cfg.Logger,
	}
	if m.Device == nil {
		m.Device = SingleDevice{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	m.Fitter = newFitter(m)
	m.Posterior = &Posterior{model: m}
	m.MCMC = newMCMCSampler(m)
	return m, nil
}
