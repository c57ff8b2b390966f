package ffprobe_test

import (
	"testing"

	"clipforge/internal/media/ffprobe"
)

const samplePayload = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000"}
  ],
  "format": {"filename": "talk.mp4", "nb_streams": 2, "duration": "1830.512", "format_name": "mov,mp4"}
}`

func TestDecodeCountsAndDuration(t *testing.T) {
	result, err := ffprobe.Decode([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := result.AudioStreamCount(); got != 1 {
		t.Fatalf("AudioStreamCount = %d, want 1", got)
	}
	if got := result.VideoStreamCount(); got != 1 {
		t.Fatalf("VideoStreamCount = %d, want 1", got)
	}
	if got := result.DurationSeconds(); got != 1830.512 {
		t.Fatalf("DurationSeconds = %v", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := ffprobe.Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDurationSecondsMissing(t *testing.T) {
	result, err := ffprobe.Decode([]byte(`{"streams": [], "format": {}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("DurationSeconds = %v, want 0", got)
	}
}
