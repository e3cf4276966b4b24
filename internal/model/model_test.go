package model_test

import (
	"testing"
	"time"

	"storyreel/internal/model"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{5 * time.Second, "00:05"},
		{75 * time.Second, "01:15"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{5*time.Second + 250*time.Millisecond, "00:05.250"},
		{-time.Second, "00:00"},
	}
	for _, tc := range cases {
		if got := model.FormatTimestamp(tc.in); got != tc.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestArtifactSetOrderedFollowsKeys(t *testing.T) {
	set := model.NewArtifactSet([]model.Artifact{
		{SceneKey: "00:10", Kind: model.KindVoice, Path: "b.wav"},
		{SceneKey: "00:00", Kind: model.KindVoice, Path: "a.wav"},
	})
	ordered := set.Ordered([]string{"00:00", "00:05", "00:10"})
	if len(ordered) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(ordered))
	}
	if ordered[0].Path != "a.wav" || ordered[1].Path != "b.wav" {
		t.Fatalf("unexpected order: %+v", ordered)
	}
}

func TestSettingsWithDefaults(t *testing.T) {
	defaults := model.Settings{Voice: "en", Width: 1280, Height: 720, FPS: 30, Background: "black", TextColor: "white"}
	got := model.Settings{Width: 640}.WithDefaults(defaults)
	if got.Width != 640 || got.Height != 720 || got.Voice != "en" || got.FPS != 30 {
		t.Fatalf("unexpected merged settings: %+v", got)
	}
}

func TestSceneFileStem(t *testing.T) {
	if got := model.SceneFileStem("01:05.250"); got != "01-05_250" {
		t.Fatalf("SceneFileStem = %q", got)
	}
}
