package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/priority"
)

// PresetRepo persists priority.Preset values; "balanced" and any built-in
// presets are synthesized in code (internal/priority) and never stored, only
// "custom" and other user-authored presets round-trip through this table.
type PresetRepo struct {
	db *DB
}

func NewPresetRepo(db *DB) *PresetRepo { return &PresetRepo{db: db} }

type presetPayload struct {
	Entries  map[priority.Category]map[string][]string `json:"entries"`
	Disabled map[string]bool                            `json:"disabled"`
}

func (r *PresetRepo) Save(ctx context.Context, p priority.Preset) error {
	payload := presetPayload{Entries: p.Entries, Disabled: p.Disabled}
	entriesJSON, err := json.Marshal(payload.Entries)
	if err != nil {
		return errs.Wrap(errs.KindInputInvalid, err, "marshal preset entries")
	}
	disabledJSON, err := json.Marshal(payload.Disabled)
	if err != nil {
		return errs.Wrap(errs.KindInputInvalid, err, "marshal preset disabled set")
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO priority_presets (name, entries, disabled) VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET entries=EXCLUDED.entries, disabled=EXCLUDED.disabled
	`, p.Name, entriesJSON, disabledJSON)
	if err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "save preset").ForceRetryable(true)
	}
	return nil
}

func (r *PresetRepo) Get(ctx context.Context, name string) (*priority.Preset, error) {
	var entriesJSON, disabledJSON []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT entries, disabled FROM priority_presets WHERE name=$1`, name).Scan(&entriesJSON, &disabledJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "get preset").ForceRetryable(true)
	}
	var entries map[priority.Category]map[string][]string
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return nil, errs.Wrap(errs.KindSchemaMismatch, err, "unmarshal preset entries")
	}
	var disabled map[string]bool
	if err := json.Unmarshal(disabledJSON, &disabled); err != nil {
		return nil, errs.Wrap(errs.KindSchemaMismatch, err, "unmarshal preset disabled set")
	}
	return &priority.Preset{Name: name, Entries: entries, Disabled: disabled}, nil
}

func (r *PresetRepo) SetActive(ctx context.Context, name string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorageConnectionFailed, err, "begin set active preset").ForceRetryable(true)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `UPDATE priority_presets SET is_active=FALSE`); err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "clear active preset").ForceRetryable(true)
	}
	if _, err := tx.Exec(ctx, `UPDATE priority_presets SET is_active=TRUE WHERE name=$1`, name); err != nil {
		return errs.Wrap(errs.KindStorageQueryFailed, err, "set active preset").ForceRetryable(true)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindStorageTxFailed, err, "commit set active preset").ForceRetryable(true)
	}
	return nil
}

// ActiveName returns the name of the active custom preset, or "" when none
// is active and the balanced defaults should apply.
func (r *PresetRepo) ActiveName(ctx context.Context) (string, error) {
	var name string
	err := r.db.Pool.QueryRow(ctx, `SELECT name FROM priority_presets WHERE is_active=TRUE LIMIT 1`).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", errs.Wrap(errs.KindStorageQueryFailed, err, "active preset name").ForceRetryable(true)
	}
	return name, nil
}
