package main

import (
	"log/slog"

	"mediasuite/internal/agent"
	"mediasuite/internal/config"
	"mediasuite/internal/media/ffprobe"
	"mediasuite/internal/metrics"
	"mediasuite/internal/orchestrator"
	"mediasuite/internal/registry"
	"mediasuite/internal/validation"
)

// buildOrchestrator wires the configured agents, validator, metrics and
// recorder into an orchestrator.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, rec orchestrator.Recorder) (*orchestrator.Orchestrator, error) {
	prober := ffprobe.Binary{Path: cfg.FFprobeBinary()}
	reg, err := registry.Default(agent.Deps{
		Prober:    prober,
		KeyFrames: cfg.Storyboard.KeyFrames,
		Logger:    logger,
	}, cfg.Pipeline.Agents...)
	if err != nil {
		return nil, err
	}
	validator := validation.New(reg, validation.OptionsFromConfig(cfg, prober, logger))

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithWorkers(cfg.Pipeline.Workers),
		orchestrator.WithAgentTimeout(cfg.AgentTimeout()),
		orchestrator.WithRetries(cfg.Pipeline.Retries),
		orchestrator.WithMetrics(m),
	}
	if rec != nil {
		opts = append(opts, orchestrator.WithRecorder(rec))
	}
	return orchestrator.New(reg, validator, opts...), nil
}
