package validation

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"

	"mediasuite/internal/agent"
	"mediasuite/internal/config"
	"mediasuite/internal/logging"
	"mediasuite/internal/media/ffprobe"
	"mediasuite/internal/services"
)

const minVideoDurationSeconds = 1.0

// KindResolver maps an agent id to its kind.
type KindResolver interface {
	Kind(agentID string) (agent.Kind, bool)
}

// Options tunes the validator thresholds.
type Options struct {
	MinVideoBytes      int64
	MinStoryboardBytes int64
	// ProbeMedia enables the ffprobe check on video output.
	ProbeMedia bool
	Prober     ffprobe.Prober
	Logger     *slog.Logger
}

// OptionsFromConfig derives validator options from configuration.
func OptionsFromConfig(cfg *config.Config, prober ffprobe.Prober, logger *slog.Logger) Options {
	return Options{
		MinVideoBytes:      cfg.Validation.MinVideoBytes,
		MinStoryboardBytes: cfg.Validation.MinStoryboardBytes,
		ProbeMedia:         cfg.Validation.ProbeMedia,
		Prober:             prober,
		Logger:             logger,
	}
}

// Validator runs the per-kind output checks.
type Validator struct {
	kinds  KindResolver
	opts   Options
	logger *slog.Logger
}

// New constructs a validator. Without a resolver every agent is treated as an
// unknown kind and validates permissively unless its result failed.
func New(kinds KindResolver, opts Options) *Validator {
	if opts.ProbeMedia && opts.Prober == nil {
		opts.Prober = ffprobe.Binary{}
	}
	return &Validator{
		kinds:  kinds,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "validation"),
	}
}

// Validate reports whether result is sound for the given agent.
func (v *Validator) Validate(ctx context.Context, agentID string, result agent.Result) (ok bool) {
	logger := logging.WithContext(services.WithAgentID(ctx, agentID), v.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "validation check panicked", "validation_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.Impact("result flagged as failed validation"),
			)
			ok = false
		}
	}()

	if result.Failed() {
		return false
	}

	var kind agent.Kind
	if v.kinds != nil {
		kind, _ = v.kinds.Kind(agentID)
	}

	var err error
	switch kind {
	case agent.KindVideo:
		err = v.checkVideo(ctx, result.StringMetric(agent.MetricOutputVideo))
	case agent.KindStoryboard:
		err = v.checkStoryboard(result.StringMetric(agent.MetricStoryboardImage))
	default:
		return true
	}
	if err != nil {
		logger.Info("output failed validation",
			logging.EventType("validation_failed"),
			logging.String("kind", string(kind)),
			logging.Error(err),
		)
		return false
	}
	return true
}

func (v *Validator) checkVideo(ctx context.Context, path string) error {
	if err := checkFileSize(path, v.opts.MinVideoBytes); err != nil {
		return err
	}
	if !v.opts.ProbeMedia {
		return nil
	}
	probe, err := v.opts.Prober.Probe(ctx, path)
	if err != nil {
		return fmt.Errorf("probe output: %w", err)
	}
	stream, found := probe.VideoStream()
	if !found {
		return fmt.Errorf("output %s has no video stream", path)
	}
	if duration := probe.DurationSeconds(); !(duration > minVideoDurationSeconds) {
		return fmt.Errorf("output duration %.2fs is too short", duration)
	}
	if stream.FrameRate() <= 0 {
		return fmt.Errorf("output frame rate unavailable")
	}
	if stream.Width <= 0 {
		return fmt.Errorf("output width unavailable")
	}
	return nil
}

func (v *Validator) checkStoryboard(path string) error {
	if err := checkFileSize(path, v.opts.MinStoryboardBytes); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open storyboard: %w", err)
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return fmt.Errorf("decode storyboard: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("storyboard has empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return nil
}

// checkFileSize requires path to be a regular file strictly larger than minBytes.
func checkFileSize(path string, minBytes int64) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("no output artifact declared")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("artifact %s is not a regular file", path)
	}
	if info.Size() <= minBytes {
		return fmt.Errorf("artifact %s is %d bytes, need more than %d", path, info.Size(), minBytes)
	}
	return nil
}
