package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"path/filepath"
	"strings"

	"mediasuite/internal/logging"
	"mediasuite/internal/media/ffprobe"
)

// Built-in agent identifiers in canonical pipeline order.
const (
	VideoAgentID      = "video-agent"
	AudioAgentID      = "audio-agent"
	MetadataAgentID   = "metadata-agent"
	StoryboardAgentID = "storyboard-agent"
)

const defaultKeyFrames = 24

// Deps are the collaborators shared by the built-in agents.
type Deps struct {
	Prober    ffprobe.Prober
	KeyFrames int
	Logger    *slog.Logger
}

// Builtin describes one built-in agent.
type Builtin struct {
	ID           string
	Kind         Kind
	Capabilities []string
	Factory      Factory
}

// Builtins returns the built-in agents in canonical order.
func Builtins(deps Deps) []Builtin {
	if deps.Prober == nil {
		deps.Prober = ffprobe.Binary{}
	}
	if deps.KeyFrames <= 0 {
		deps.KeyFrames = defaultKeyFrames
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return []Builtin{
		{
			ID:           VideoAgentID,
			Kind:         KindVideo,
			Capabilities: []string{"process", "status", "cancel"},
			Factory:      probeFactory(deps, VideoAgentID, videoMetrics),
		},
		{
			ID:           AudioAgentID,
			Kind:         KindAudio,
			Capabilities: []string{"process", "status", "cancel"},
			Factory:      probeFactory(deps, AudioAgentID, audioMetrics),
		},
		{
			ID:           MetadataAgentID,
			Kind:         KindMetadata,
			Capabilities: []string{"process", "status", "cancel"},
			Factory:      probeFactory(deps, MetadataAgentID, metadataMetrics),
		},
		{
			ID:           StoryboardAgentID,
			Kind:         KindStoryboard,
			Capabilities: []string{"process", "status", "cancel"},
			Factory: probeFactory(deps, StoryboardAgentID, func(cfg Config, probe ffprobe.Result) Result {
				return storyboardMetrics(probe, deps.KeyFrames)
			}),
		},
	}
}

// LookupBuiltin returns the built-in agent with the given id.
func LookupBuiltin(deps Deps, id string) (Builtin, bool) {
	for _, b := range Builtins(deps) {
		if b.ID == id {
			return b, true
		}
	}
	return Builtin{}, false
}

type metricsFunc func(cfg Config, probe ffprobe.Result) Result

// probeAgent probes the source once and derives its metrics from the probe.
type probeAgent struct {
	id     string
	cfg    Config
	prober ffprobe.Prober
	logger *slog.Logger
	derive metricsFunc
}

func probeFactory(deps Deps, id string, derive metricsFunc) Factory {
	return func(cfg Config) (Agent, error) {
		if strings.TrimSpace(cfg.FileReference) == "" {
			return nil, errors.New("file reference is required")
		}
		return &probeAgent{
			id:     id,
			cfg:    cfg,
			prober: deps.Prober,
			logger: logging.NewComponentLogger(deps.Logger, id),
			derive: derive,
		}, nil
	}
}

func (a *probeAgent) Process(ctx context.Context) (Result, error) {
	a.logger.Debug("probing source",
		logging.String(logging.FieldJobID, a.cfg.JobID),
		logging.String("file_reference", a.cfg.FileReference),
	)
	probe, err := a.prober.Probe(ctx, a.cfg.FileReference)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Failure(fmt.Sprintf("probe %s: %v", filepath.Base(a.cfg.FileReference), err)), nil
	}
	return a.derive(a.cfg, probe), nil
}

func videoMetrics(cfg Config, probe ffprobe.Result) Result {
	video, ok := probe.VideoStream()
	if !ok {
		return Failure("no video stream found")
	}
	duration := finite(probe.DurationSeconds())
	fps := video.FrameRate()
	return Success(map[string]any{
		"resolution":       fmt.Sprintf("%dx%d", video.Width, video.Height),
		"width":            video.Width,
		"height":           video.Height,
		"codec":            video.CodecName,
		"duration_seconds": duration,
		"frame_rate":       round2(fps),
		"frames_processed": int(math.Round(duration * fps)),
		"video_streams":    probe.VideoStreamCount(),
		MetricOutputVideo:  cfg.FileReference,
	})
}

func audioMetrics(_ Config, probe ffprobe.Result) Result {
	audio, ok := probe.AudioStream()
	if !ok {
		return Failure("no audio stream found")
	}
	rate := audio.SampleRateHz()
	return Success(map[string]any{
		"audio_streams":  probe.AudioStreamCount(),
		"codec":          audio.CodecName,
		"sample_rate_hz": rate,
		"channels":       audio.Channels,
		"quality":        qualityLabel(rate, audio.Channels),
	})
}

func metadataMetrics(cfg Config, probe ffprobe.Result) Result {
	kind := strings.TrimSpace(cfg.FileKind)
	if kind == "" {
		kind = mime.TypeByExtension(strings.ToLower(filepath.Ext(cfg.FileReference)))
	}
	metrics := map[string]any{
		"file_kind":        kind,
		"container":        probe.Format.FormatName,
		"duration_seconds": finite(probe.DurationSeconds()),
		"size_bytes":       probe.SizeBytes(),
		"bit_rate":         probe.BitRate(),
		"streams":          len(probe.Streams),
		"tags":             deriveTags(kind, probe),
	}
	if title := strings.TrimSpace(probe.Format.Tags["title"]); title != "" {
		metrics["title"] = title
	}
	return Success(metrics)
}

func storyboardMetrics(probe ffprobe.Result, keyFrames int) Result {
	duration := finite(probe.DurationSeconds())
	if duration <= 0 {
		return Failure("source duration unavailable")
	}
	if probe.VideoStreamCount() == 0 {
		return Failure("no video stream to sample")
	}
	timestamps := make([]float64, keyFrames)
	step := duration / float64(keyFrames)
	for i := range timestamps {
		timestamps[i] = round2(float64(i) * step)
	}
	scenes := max(1, keyFrames/2)
	return Success(map[string]any{
		"key_frames":          keyFrames,
		"key_frame_times":     timestamps,
		"scenes":              scenes,
		"transitions":         scenes - 1,
		"timeline_generated":  true,
		"frame_interval_secs": round2(step),
	})
}

func deriveTags(kind string, probe ffprobe.Result) []string {
	var tags []string
	if major, minor, ok := strings.Cut(kind, "/"); ok {
		tags = append(tags, major, minor)
	} else if kind != "" {
		tags = append(tags, kind)
	}
	if probe.VideoStreamCount() > 0 {
		tags = append(tags, "has-video")
	}
	if probe.AudioStreamCount() > 0 {
		tags = append(tags, "has-audio")
	}
	return tags
}

func qualityLabel(rate, channels int) string {
	layout := "mono"
	switch {
	case channels == 2:
		layout = "stereo"
	case channels > 2:
		layout = fmt.Sprintf("%dch", channels)
	}
	if rate <= 0 {
		return layout
	}
	return fmt.Sprintf("%gkHz %s", float64(rate)/1000, layout)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
