package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when a mutation targets an unknown identity.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidTransition is returned when the state machine forbids a change.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrReadOnly is returned by mutations on a dry-run store.
	ErrReadOnly = errors.New("tracking store is read-only")
)

// TransitionOptions carries field changes applied together with a state change.
type TransitionOptions struct {
	// Metadata replaces the stored enrichment payload when non-nil.
	Metadata json.RawMessage
	// DestinationPath is recorded when non-empty.
	DestinationPath string
	// LastError replaces the stored error; ClearError empties it.
	LastError  string
	ClearError bool
	// CountAttempt increments the enrichment attempt counter.
	CountAttempt bool
}

// Get fetches an item by identity. It returns nil when the item is absent.
func (s *Store) Get(ctx context.Context, identity string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE identity = ?`, identity)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByPath resolves a relative path to its tracked item, or nil.
func (s *Store) GetByPath(ctx context.Context, relativePath string) (*Item, error) {
	identity, err := IdentityFor(relativePath)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, identity)
}

// Upsert inserts an item or overwrites its path and state. The insert and
// update happen in a single statement so a failure leaves the prior record
// intact.
func (s *Store) Upsert(ctx context.Context, identity, relativePath string, state State) (*Item, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	if !state.Valid() {
		return nil, fmt.Errorf("upsert item: unknown state %q", state)
	}
	normalized, err := NormalizeRelativePath(relativePath)
	if err != nil {
		return nil, err
	}
	now := timestampNow()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (identity, relative_path, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(identity) DO UPDATE SET
             relative_path = excluded.relative_path,
             state = excluded.state,
             updated_at = excluded.updated_at`,
		identity,
		normalized,
		state,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}
	return s.Get(ctx, identity)
}

// Remove deletes an item. Removing an absent identity is a no-op.
func (s *Store) Remove(ctx context.Context, identity string) (bool, error) {
	if s.readOnly {
		return false, ErrReadOnly
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM items WHERE identity = ?`, identity)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	return affected > 0, nil
}

// List returns items in the requested states ordered by relative path. With
// no states, every item is returned. The result is read in one query and so
// reflects a single snapshot.
func (s *Store) List(ctx context.Context, states ...State) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY relative_path`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Transition moves an item to a new state after checking the transition
// table against the item's current state. The check and the write share a
// transaction.
func (s *Store) Transition(ctx context.Context, identity string, to State, opts TransitionOptions) (*Item, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT state FROM items WHERE identity = ?`, identity).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrItemNotFound, identity)
			}
			return err
		}
		from := State(current)
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}

		query := `UPDATE items SET state = ?, updated_at = ?`
		args := []any{to, timestampNow()}
		if opts.Metadata != nil {
			query += `, metadata_json = ?`
			args = append(args, nullableJSON(opts.Metadata))
		}
		if opts.DestinationPath != "" {
			query += `, destination_path = ?`
			args = append(args, opts.DestinationPath)
		}
		switch {
		case opts.LastError != "":
			query += `, last_error = ?`
			args = append(args, opts.LastError)
		case opts.ClearError:
			query += `, last_error = NULL`
		}
		if opts.CountAttempt {
			query += `, attempts = attempts + 1`
		}
		query += ` WHERE identity = ?`
		args = append(args, identity)

		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transition item: %w", err)
	}
	return s.Get(ctx, identity)
}

// RecordError stores a failure message without changing the item's state.
func (s *Store) RecordError(ctx context.Context, identity, message string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET last_error = ?, updated_at = ? WHERE identity = ?`,
		nullableString(message),
		timestampNow(),
		identity,
	)
	if err != nil {
		return fmt.Errorf("record item error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("record item error: %w: %s", ErrItemNotFound, identity)
	}
	return nil
}
