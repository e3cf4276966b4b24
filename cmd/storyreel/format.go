package main

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyreel/internal/job"
	"storyreel/internal/model"
)

var titleCaser = cases.Title(language.Und)

// stageLabel renders "visual_generation" as "Visual Generation".
func stageLabel(stage job.Stage) string {
	return titleCaser.String(strings.ReplaceAll(string(stage), "_", " "))
}

func formatClock(d time.Duration) string {
	return model.FormatTimestamp(d)
}

func formatSeconds(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
