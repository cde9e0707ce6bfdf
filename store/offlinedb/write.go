package offlinedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Trip is the cached header of a trip.
type Trip struct {
	ID          string
	Name        string
	Destination string
	StartsOn    string
	EndsOn      string
	Currency    string
	UpdatedAt   time.Time
}

// Member is a participant of a trip.
type Member struct {
	TripID string
	UserID string
	Email  string
	Role   string
}

// Split is one member's share of an expense.
type Split struct {
	UserID      string
	AmountCents int64
}

// Expense is a cached expense together with its splits.
type Expense struct {
	ID          string
	TripID      string
	PaidBy      string
	Description string
	AmountCents int64
	Currency    string
	SpentAt     time.Time
	Splits      []Split
}

// ChecklistItem is one packing or to-do entry.
type ChecklistItem struct {
	ID     string
	TripID string
	Title  string
	Done   bool
}

// Note is a free-form trip note.
type Note struct {
	ID     string
	TripID string
	Body   string
}

// PollOption is one answer of a poll.
type PollOption struct {
	ID    string
	Label string
	Votes int
}

// Poll is a group decision with its options.
type Poll struct {
	ID       string
	TripID   string
	Question string
	Options  []PollOption
}

// SaveTrip upserts a trip.
func (s *Store) SaveTrip(ctx context.Context, t Trip) error {
	if t.Currency == "" {
		t.Currency = "USD"
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trips (id, name, destination, starts_on, ends_on, currency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, destination = excluded.destination,
			starts_on = excluded.starts_on, ends_on = excluded.ends_on,
			currency = excluded.currency, updated_at = excluded.updated_at
	`, t.ID, t.Name, t.Destination, t.StartsOn, t.EndsOn, t.Currency, t.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save trip %s: %w", t.ID, err)
	}
	return nil
}

// SaveMember upserts a trip member.
func (s *Store) SaveMember(ctx context.Context, m Member) error {
	if m.Role == "" {
		m.Role = "member"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trip_members (trip_id, user_id, email, role) VALUES (?, ?, ?, ?)
		ON CONFLICT(trip_id, user_id) DO UPDATE SET email = excluded.email, role = excluded.role
	`, m.TripID, m.UserID, m.Email, m.Role)
	if err != nil {
		return fmt.Errorf("save member %s/%s: %w", m.TripID, m.UserID, err)
	}
	return nil
}

// SaveExpense replaces an expense and its splits atomically.
func (s *Store) SaveExpense(ctx context.Context, e Expense) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = ?`, e.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO expenses (id, trip_id, paid_by, description, amount_cents, currency, spent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TripID, e.PaidBy, e.Description, e.AmountCents, e.Currency, e.SpentAt.UnixMilli()); err != nil {
			return err
		}
		for _, sp := range e.Splits {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO expense_splits (expense_id, user_id, amount_cents) VALUES (?, ?, ?)`,
				e.ID, sp.UserID, sp.AmountCents); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveChecklistItem upserts a checklist entry.
func (s *Store) SaveChecklistItem(ctx context.Context, c ChecklistItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checklist_items (id, trip_id, title, done) VALUES (?, ?, ?, ?)`,
		c.ID, c.TripID, c.Title, c.Done)
	if err != nil {
		return fmt.Errorf("save checklist item %s: %w", c.ID, err)
	}
	return nil
}

// SaveNote upserts a note.
func (s *Store) SaveNote(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notes (id, trip_id, body) VALUES (?, ?, ?)`, n.ID, n.TripID, n.Body)
	if err != nil {
		return fmt.Errorf("save note %s: %w", n.ID, err)
	}
	return nil
}

// SavePoll replaces a poll and its options atomically.
func (s *Store) SavePoll(ctx context.Context, p Poll) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM poll_options WHERE poll_id = ?`, p.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO polls (id, trip_id, question) VALUES (?, ?, ?)`,
			p.ID, p.TripID, p.Question); err != nil {
			return err
		}
		for _, o := range p.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO poll_options (id, poll_id, label, votes) VALUES (?, ?, ?, ?)`,
				o.ID, p.ID, o.Label, o.Votes); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkInitialized sets the flag the client checks before trusting the offline copy.
func (s *Store) MarkInitialized(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_meta (key, value) VALUES (?, ?)`,
		initializedKey, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Initialized reports whether the offline copy has been populated since the last clear.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = ?`, initializedKey).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
