package tracking

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const itemColumns = "identity, relative_path, state, metadata_json, destination_path, last_error, attempts, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		identity     string
		relativePath string
		stateStr     string
		metadata     sql.NullString
		destination  sql.NullString
		lastError    sql.NullString
		attempts     sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&identity,
		&relativePath,
		&stateStr,
		&metadata,
		&destination,
		&lastError,
		&attempts,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		Identity:        identity,
		RelativePath:    relativePath,
		State:           State(stateStr),
		DestinationPath: destination.String,
		LastError:       lastError.String,
		Attempts:        int(attempts.Int64),
	}
	if metadata.Valid && metadata.String != "" {
		item.Metadata = json.RawMessage(metadata.String)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableJSON(value json.RawMessage) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}

func timestampNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
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
