package script_test

import (
	"errors"
	"testing"
	"time"

	"storyreel/internal/script"
	"storyreel/internal/services"
)

const sampleText = `Title: Launch Day
Duration: 00:23

[00:00]
Narration: Welcome to launch day.
Visual: A rocket on the pad at dawn.
Text: T-minus 10

[00:05] The countdown begins.
Visual: Close-up of the engines.

[00:15]
Ignition and liftoff.
Text: Liftoff!
`

func mustParser(t *testing.T, format script.Format) script.Parser {
	t.Helper()
	p, err := script.New(format, script.Options{})
	if err != nil {
		t.Fatalf("New(%s) failed: %v", format, err)
	}
	return p
}

func TestTextParserBuildsContiguousScenes(t *testing.T) {
	parsed, err := mustParser(t, script.FormatText).Parse(sampleText)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Title != "Launch Day" {
		t.Fatalf("unexpected title %q", parsed.Title)
	}
	if parsed.TotalDuration != 23*time.Second {
		t.Fatalf("unexpected total %v", parsed.TotalDuration)
	}
	wantKeys := []string{"00:00", "00:05", "00:15"}
	wantDur := []time.Duration{5 * time.Second, 10 * time.Second, 8 * time.Second}
	if len(parsed.Scenes) != len(wantKeys) {
		t.Fatalf("expected %d scenes, got %d", len(wantKeys), len(parsed.Scenes))
	}
	var sum time.Duration
	for i, scene := range parsed.Scenes {
		if scene.Key != wantKeys[i] {
			t.Fatalf("scene %d key = %q, want %q", i, scene.Key, wantKeys[i])
		}
		if scene.Duration != wantDur[i] {
			t.Fatalf("scene %d duration = %v, want %v", i, scene.Duration, wantDur[i])
		}
		sum += scene.Duration
	}
	if sum != parsed.TotalDuration {
		t.Fatalf("durations sum to %v, total %v", sum, parsed.TotalDuration)
	}
	if got := parsed.Scenes[1].Narration; len(got) != 1 || got[0] != "The countdown begins." {
		t.Fatalf("unexpected inline narration: %v", got)
	}
	if got := parsed.Scenes[2].Narration; len(got) != 1 || got[0] != "Ignition and liftoff." {
		t.Fatalf("unexpected unprefixed narration: %v", got)
	}
	if got := parsed.Scenes[0].OnScreenText; len(got) != 1 || got[0] != "T-minus 10" {
		t.Fatalf("unexpected on-screen text: %v", got)
	}
}

func TestParsedScenesAreStrictlyIncreasing(t *testing.T) {
	parsed, err := mustParser(t, script.FormatAuto).Parse(sampleText)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var maxEnd time.Duration
	for i, scene := range parsed.Scenes {
		if i > 0 && scene.TimestampSeconds() <= parsed.Scenes[i-1].TimestampSeconds() {
			t.Fatalf("scene %d not after previous", i)
		}
		if scene.End() > maxEnd {
			maxEnd = scene.End()
		}
	}
	if parsed.TotalDuration < maxEnd {
		t.Fatalf("total %v shorter than last scene end %v", parsed.TotalDuration, maxEnd)
	}
}

func TestTextParserDefaultsLastScene(t *testing.T) {
	p, err := script.New(script.FormatText, script.Options{LastSceneDuration: 3 * time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	parsed, err := p.Parse("[00:00] hello\n[00:02] world\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.TotalDuration != 5*time.Second {
		t.Fatalf("unexpected total %v", parsed.TotalDuration)
	}
}

func TestYAMLParser(t *testing.T) {
	raw := `
title: Launch Day
duration: "23"
scenes:
  - at: "00:00"
    narration: Welcome to launch day.
    visuals: [A rocket on the pad]
  - at: "00:05"
    narration:
      - The countdown begins.
      - Engines spool up.
    text: T-minus 5
  - at: "00:15"
    narration: Liftoff.
`
	parsed, err := mustParser(t, script.FormatAuto).Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.TotalDuration != 23*time.Second || len(parsed.Scenes) != 3 {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
	if len(parsed.Scenes[1].Narration) != 2 {
		t.Fatalf("expected list narration, got %v", parsed.Scenes[1].Narration)
	}
	if parsed.Scenes[2].Duration != 8*time.Second {
		t.Fatalf("unexpected last duration %v", parsed.Scenes[2].Duration)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            "   \n",
		"no scenes":        "Title: Nothing\n",
		"late first scene": "[00:03] hi\n",
		"non increasing":   "[00:00] a\n[00:05] b\n[00:05] c\n",
		"decreasing":       "[00:00] a\n[00:05] b\n[00:02] c\n",
		"bad timestamp":    "[00:xx] a\n",
		"short duration":   "Duration: 00:04\n[00:00] a\n[00:05] b\n",
		"stray text":       "hello\n[00:00] a\n",
		"invalid seconds":  "[00:00] a\n[00:75] b\n",
		"exponent":         "[00:00] a\n[1e13] b\n",
		"not a number":     "[00:00] a\n[NaN] b\n",
	}
	p := mustParser(t, script.FormatText)
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(raw)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, services.ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Duration{
		"00:05":   5 * time.Second,
		"[01:15]": 75 * time.Second,
		"1:02:03": time.Hour + 2*time.Minute + 3*time.Second,
		"7.5":     7500 * time.Millisecond,
		"00:02.3": 2300 * time.Millisecond,
	}
	for in, want := range cases {
		got, err := script.ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseTimestampRejectsNonDecimal(t *testing.T) {
	for _, in := range []string{"NaN", "Inf", "+Inf", "1e13", "-5", "+5", "00:-1", "0x10", "5.", ".5", "100:00:00", "360000"} {
		if got, err := script.ParseTimestamp(in); err == nil {
			t.Fatalf("ParseTimestamp(%q) = %v, want error", in, got)
		}
	}
	got, err := script.ParseTimestamp("99:59:59.999")
	if err != nil {
		t.Fatalf("ParseTimestamp upper bound: %v", err)
	}
	if want := script.MaxTimestamp - time.Millisecond; got != want {
		t.Fatalf("ParseTimestamp upper bound = %v, want %v", got, want)
	}
}

func TestFormatForPath(t *testing.T) {
	if script.FormatForPath("a/b.yml") != script.FormatYAML {
		t.Fatal("expected yaml for .yml")
	}
	if script.FormatForPath("story.txt") != script.FormatText {
		t.Fatal("expected text for .txt")
	}
	if script.FormatForPath("story") != script.FormatAuto {
		t.Fatal("expected auto without extension")
	}
	if _, err := script.New("xml", script.Options{}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
