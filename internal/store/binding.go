package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Binding routes an input event to a plugin action. An empty Handedness
// matches either hand.
type Binding struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Handedness string          `json:"handedness,omitempty"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, event, handedness, plugin_name, action_name, config, enabled, created_at`

// Create inserts a binding.
func (r *BindingRepository) Create(b *Binding) error {
	b.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Event, b.Handedness, b.PluginName, b.ActionName, configText(b.Config), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// List returns every binding, oldest first.
func (r *BindingRepository) List() ([]*Binding, error) {
	return r.query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY created_at, id`)
}

// ForEvent returns the enabled bindings for an event kind that match the
// given handedness or any hand.
func (r *BindingRepository) ForEvent(event, handedness string) ([]*Binding, error) {
	return r.query(
		`SELECT `+bindingColumns+` FROM bindings
		 WHERE event = ? AND enabled = 1 AND (handedness = '' OR handedness = ?)
		 ORDER BY created_at, id`,
		event, handedness,
	)
}

// Update overwrites a binding's mutable fields.
func (r *BindingRepository) Update(b *Binding) error {
	result, err := r.db.Exec(
		`UPDATE bindings SET event = ?, handedness = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.Event, b.Handedness, b.PluginName, b.ActionName, configText(b.Config), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a binding.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r *BindingRepository) query(q string, args ...any) ([]*Binding, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func scanBinding(s scanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int
	err := s.Scan(&b.ID, &b.Event, &b.Handedness, &b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func configText(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}
