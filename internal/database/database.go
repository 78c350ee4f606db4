package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/models"
)

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteDB stores diary entries and recognition metrics.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the database at dbPath, applying pending migrations.
func NewSQLiteDB(dbPath string, log logrus.FieldLogger) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath, log); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// SQL exposes the connection for stores sharing the database.
func (s *SQLiteDB) SQL() *sql.DB {
	return s.db
}

// SaveFoodEntry inserts a committed entry.
func (s *SQLiteDB) SaveFoodEntry(ctx context.Context, e *models.FoodEntry) error {
	query := `
		INSERT INTO food_entries (
			id, name, calories, protein, carbs, fats, weight, confidence, meal_time,
			image_data, image_mime, image_width, image_height, image_origin, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Calories,
		e.Macros.Protein, e.Macros.Carbs, e.Macros.Fats,
		e.Weight, e.Confidence, e.Time,
		e.Image.Data, e.Image.MIMEType, e.Image.Width, e.Image.Height, string(e.Image.Origin),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert food entry: %w", err)
	}
	return nil
}

// ListFoodEntries returns all entries created at or after since, most
// recent first. A zero since returns everything.
func (s *SQLiteDB) ListFoodEntries(ctx context.Context, since time.Time) ([]models.FoodEntry, error) {
	query := `
		SELECT id, name, calories, protein, carbs, fats, weight, confidence, meal_time,
			image_data, image_mime, image_width, image_height, image_origin, created_at
		FROM food_entries
		WHERE created_at >= ?
		ORDER BY created_at DESC, rowid DESC
	`

	var from string
	if !since.IsZero() {
		from = since.UTC().Format(timeLayout)
	}

	rows, err := s.db.QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query food entries: %w", err)
	}
	defer rows.Close()

	var results []models.FoodEntry
	for rows.Next() {
		var e models.FoodEntry
		var origin, createdAt string

		err := rows.Scan(
			&e.ID, &e.Name, &e.Calories,
			&e.Macros.Protein, &e.Macros.Carbs, &e.Macros.Fats,
			&e.Weight, &e.Confidence, &e.Time,
			&e.Image.Data, &e.Image.MIMEType, &e.Image.Width, &e.Image.Height, &origin,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food entry: %w", err)
		}

		e.Image.Origin = models.ImageOrigin(origin)
		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q for entry %s: %w", createdAt, e.ID, err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read food entries: %w", err)
	}
	return results, nil
}

// DeleteFoodEntry removes an entry by id.
func (s *SQLiteDB) DeleteFoodEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM food_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete food entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete food entry: %w", err)
	}
	if n == 0 {
		return apperrors.New(apperrors.ErrNotFound, "food entry not found: "+id)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
