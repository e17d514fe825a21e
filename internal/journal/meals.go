package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	dayLayout        = "2006-01-02"
	defaultListLimit = 50
)

// Meal is one calorie estimate taken from a completed chat turn.
type Meal struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Calories  int       `json:"calories"`
	Food      string    `json:"food,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DayTotal is the calorie sum of one UTC day.
type DayTotal struct {
	Day      string `json:"day"`
	Calories int    `json:"calories"`
}

// RecordMeal appends a meal for sessionID.
func (j *Journal) RecordMeal(ctx context.Context, sessionID string, calories int, food string) error {
	_, err := j.AddMeal(ctx, Meal{SessionID: sessionID, Calories: calories, Food: food})
	return err
}

// AddMeal stores m, filling ID and CreatedAt when empty, and returns the
// stored record.
func (j *Journal) AddMeal(ctx context.Context, m Meal) (Meal, error) {
	if m.SessionID == "" {
		return Meal{}, errors.New("meal without session id")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = j.now()
	}
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Second)

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO meals (id, session_id, calories, food, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Calories, m.Food, m.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Meal{}, fmt.Errorf("inserting meal: %w", err)
	}
	return m, nil
}

// ListMeals returns the most recent meals of sessionID, newest first.
// limit <= 0 selects a default.
func (j *Journal) ListMeals(ctx context.Context, sessionID string, limit int) ([]Meal, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, calories, food, created_at FROM meals
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing meals: %w", err)
	}
	defer rows.Close()

	meals := []Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// DailyTotals sums calories per UTC day for sessionID, oldest day first.
// days > 0 restricts the result to the last days days, today included.
func (j *Journal) DailyTotals(ctx context.Context, sessionID string, days int) ([]DayTotal, error) {
	since := ""
	if days > 0 {
		since = j.now().UTC().AddDate(0, 0, -(days - 1)).Format(dayLayout)
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT substr(created_at, 1, 10) AS day, SUM(calories) FROM meals
		WHERE session_id = ? AND substr(created_at, 1, 10) >= ?
		GROUP BY day
		ORDER BY day ASC`, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("summing meals: %w", err)
	}
	defer rows.Close()

	totals := []DayTotal{}
	for rows.Next() {
		var d DayTotal
		if err := rows.Scan(&d.Day, &d.Calories); err != nil {
			return nil, err
		}
		totals = append(totals, d)
	}
	return totals, rows.Err()
}

// DeleteSession removes every meal of sessionID and reports how many were
// deleted.
func (j *Journal) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM meals WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting meals: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeal(s scanner) (Meal, error) {
	var m Meal
	var createdAt string
	if err := s.Scan(&m.ID, &m.SessionID, &m.Calories, &m.Food, &createdAt); err != nil {
		return Meal{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Meal{}, fmt.Errorf("parsing created_at: %w", err)
	}
	m.CreatedAt = t
	return m, nil
}
