// Package journal records every workflow step so a run can be reviewed
// afterwards.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/example/slotchaser/internal/db"
)

type Attempt struct {
	ID        int64
	Instance  string
	URL       string
	Date      string
	Phase     string
	NextPhase string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

func (a Attempt) Validate() error {
	if a.Instance == "" {
		return fmt.Errorf("instance required")
	}
	if a.Phase == "" || a.NextPhase == "" {
		return fmt.Errorf("phase required")
	}
	if a.Outcome == "" {
		return fmt.Errorf("outcome required")
	}
	return nil
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Record(ctx context.Context, a Attempt) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO reservation_attempts(instance, url, target_date, phase, next_phase, outcome, detail)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.Instance, a.URL, a.Date, a.Phase, a.NextPhase, a.Outcome, a.Detail)
}

// Recent returns the newest attempts first. An empty instance means all
// instances.
func (r *Repo) Recent(ctx context.Context, instance string, limit int) ([]Attempt, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id,instance,url,target_date,phase,next_phase,outcome,detail,created_at
FROM reservation_attempts
WHERE $1 = '' OR instance = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, instance, limit)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.Instance, &a.URL, &a.Date, &a.Phase, &a.NextPhase, &a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Last returns the most recent attempt for instance.
func (r *Repo) Last(ctx context.Context, instance string) (Attempt, error) {
	var a Attempt
	err := r.db.QueryRow(ctx, `
SELECT id,instance,url,target_date,phase,next_phase,outcome,detail,created_at
FROM reservation_attempts
WHERE instance=$1
ORDER BY created_at DESC, id DESC
LIMIT 1`, instance).
		Scan(&a.ID, &a.Instance, &a.URL, &a.Date, &a.Phase, &a.NextPhase, &a.Outcome, &a.Detail, &a.CreatedAt)
	if err != nil {
		return Attempt{}, db.WrapNotFound(err)
	}
	return a, nil
}

// Discard drops every attempt.
type Discard struct{}

func (Discard) Record(context.Context, Attempt) error { return nil }
