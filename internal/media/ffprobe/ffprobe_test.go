package ffprobe

import (
	"context"
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001"},
			{CodecType: "audio", SampleRate: "48000", Channels: 2},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 {
		t.Fatalf("unexpected video stream: %+v %v", video, ok)
	}
	if rate := video.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", rate)
	}
	audio, ok := result.AudioStream()
	if !ok || audio.SampleRateHz() != 48000 {
		t.Fatalf("unexpected audio stream: %+v %v", audio, ok)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
}

func TestFrameRateFallbacks(t *testing.T) {
	cases := []struct {
		stream Stream
		want   float64
	}{
		{Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{Stream{AvgFrameRate: "24"}, 24},
		{Stream{AvgFrameRate: "x/y"}, 0},
		{Stream{}, 0},
	}
	for _, tc := range cases {
		if got := tc.stream.FrameRate(); got != tc.want {
			t.Fatalf("FrameRate(%+v) = %v, want %v", tc.stream, got, tc.want)
		}
	}
}

func TestParseDecodesFFprobeJSON(t *testing.T) {
	raw := []byte(`{"streams":[{"index":0,"codec_type":"video","width":640,"height":360,"r_frame_rate":"24/1"}],"format":{"duration":"12.5","size":"2048","format_name":"mov,mp4","tags":{"title":"clip"}}}`)
	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Format.FormatName != "mov,mp4" || result.Format.Tags["title"] != "clip" {
		t.Fatalf("unexpected format: %+v", result.Format)
	}
	if _, err := Parse([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := (Binary{}).Probe(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
