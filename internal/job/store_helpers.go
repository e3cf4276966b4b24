package job

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyreel/internal/model"
)

const jobColumns = "id, title, raw_script, settings_json, stage, progress, errors_json, artifacts_json, output_path, manifest_path, failure_reason, created_at, updated_at, completed_at"

// timeLayout is fixed-width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type encodedColumns struct {
	settings  any
	errors    any
	artifacts any
}

func encodeColumns(j *Job) (encodedColumns, error) {
	var cols encodedColumns
	settings, err := json.Marshal(j.Settings)
	if err != nil {
		return cols, fmt.Errorf("marshal settings: %w", err)
	}
	cols.settings = string(settings)
	if len(j.Errors) > 0 {
		data, err := json.Marshal(j.Errors)
		if err != nil {
			return cols, fmt.Errorf("marshal errors: %w", err)
		}
		cols.errors = string(data)
	}
	if len(j.Artifacts) > 0 {
		data, err := json.Marshal(j.Artifacts)
		if err != nil {
			return cols, fmt.Errorf("marshal artifacts: %w", err)
		}
		cols.artifacts = string(data)
	}
	return cols, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		title         sql.NullString
		rawScript     string
		settingsRaw   sql.NullString
		stageStr      string
		progress      sql.NullInt64
		errorsRaw     sql.NullString
		artifactsRaw  sql.NullString
		outputPath    sql.NullString
		manifestPath  sql.NullString
		failureReason sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		completedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&rawScript,
		&settingsRaw,
		&stageStr,
		&progress,
		&errorsRaw,
		&artifactsRaw,
		&outputPath,
		&manifestPath,
		&failureReason,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	j := &Job{
		ID:            id,
		Title:         title.String,
		RawScript:     rawScript,
		Stage:         Stage(stageStr),
		Progress:      int(progress.Int64),
		OutputPath:    outputPath.String,
		ManifestPath:  manifestPath.String,
		FailureReason: failureReason.String,
	}
	if settingsRaw.String != "" {
		if err := json.Unmarshal([]byte(settingsRaw.String), &j.Settings); err != nil {
			return nil, fmt.Errorf("decode settings for job %s: %w", id, err)
		}
	}
	if errorsRaw.String != "" {
		if err := json.Unmarshal([]byte(errorsRaw.String), &j.Errors); err != nil {
			return nil, fmt.Errorf("decode errors for job %s: %w", id, err)
		}
	}
	if artifactsRaw.String != "" {
		artifacts := map[model.ArtifactKind][]model.Artifact{}
		if err := json.Unmarshal([]byte(artifactsRaw.String), &artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts for job %s: %w", id, err)
		}
		j.Artifacts = artifacts
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		j.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		j.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			j.CompletedAt = &completed
		}
	}
	return j, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
