package relay

import "testing"

func TestMaskStreamKeyReplacesLongSegment(t *testing.T) {
	got := maskStreamKey("rtmp://live.twitch.tv/app/live_abc123xyz")
	want := "rtmp://live.twitch.tv/app/***"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMaskStreamKeyLeavesShortSegmentVerbatim(t *testing.T) {
	url := "rtmp://example.com/app/abcd"
	if got := maskStreamKey(url); got != url {
		t.Fatalf("expected short segment logged verbatim, got %q", got)
	}
}

func TestBuildArgvTransmuxUsesCopy(t *testing.T) {
	r := &Relay{InputURL: "srt://in", RTMPURL: "rtmp://out/key", Transmux: true}
	argv, ok := r.buildArgv()
	if !ok {
		t.Skip("ffmpeg not on PATH in this environment")
	}
	found := false
	for i, a := range argv {
		if a == "-c" && i+1 < len(argv) && argv[i+1] == "copy" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected -c copy in transmux argv: %v", argv)
	}
}
