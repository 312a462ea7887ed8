package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/PvtMilo/gen-ai/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrThemeNotFound   = errors.New("theme not found")
	ErrJobNotFound     = errors.New("job not found")
)

// Client wraps a Postgres connection pool. The HTTP layer and the job
// pipeline each hold their own Client so background work never shares
// a connection with an in-flight request.
type Client struct {
	db *sql.DB
}

func NewClient(connectionString string) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// UpsertUserByEmail finds a user by email, refreshing name and phone
// from the latest input, or creates one when absent.
func (c *Client) UpsertUserByEmail(name, email, phone string) (*models.User, error) {
	var user models.User
	err := c.db.QueryRow(`
		SELECT id, name, email, phone, created_at
		FROM users
		WHERE email = $1
		ORDER BY id ASC
		LIMIT 1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt)

	if err == sql.ErrNoRows {
		err = c.db.QueryRow(`
			INSERT INTO users (name, email, phone, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, email, phone, created_at
		`, name, email, phone, time.Now().UTC()).Scan(
			&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	_, err = c.db.Exec(`
		UPDATE users SET name = $1, phone = $2 WHERE id = $3
	`, name, phone, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.Name = name
	user.Phone = phone

	return &user, nil
}

func (c *Client) GetUser(userID int64) (*models.User, error) {
	var user models.User
	err := c.db.QueryRow(`
		SELECT id, name, email, phone, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (c *Client) CreateSession(userID int64) (*models.PhotoSession, error) {
	var s models.PhotoSession
	err := c.db.QueryRow(`
		INSERT INTO photo_sessions (user_id, status, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, theme_id, input_image_path, status, created_at
	`, userID, models.SessionStatusDraft, time.Now().UTC()).Scan(
		&s.ID, &s.UserID, &s.ThemeID, &s.InputImagePath, &s.Status, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &s, nil
}

func (c *Client) GetSession(sessionID int64) (*models.PhotoSession, error) {
	var s models.PhotoSession
	err := c.db.QueryRow(`
		SELECT id, user_id, theme_id, input_image_path, status, created_at
		FROM photo_sessions
		WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.UserID, &s.ThemeID, &s.InputImagePath, &s.Status, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (c *Client) SetSessionTheme(sessionID int64, themeID, status string) error {
	res, err := c.db.Exec(`
		UPDATE photo_sessions SET theme_id = $1, status = $2 WHERE id = $3
	`, themeID, status, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session theme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (c *Client) SetSessionPhoto(sessionID int64, imagePath, status string) error {
	res, err := c.db.Exec(`
		UPDATE photo_sessions SET input_image_path = $1, status = $2 WHERE id = $3
	`, imagePath, status, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session photo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// LatestJobForSession returns the newest job for a session, or nil when
// the session has none yet.
func (c *Client) LatestJobForSession(sessionID int64) (*models.Job, error) {
	row := c.db.QueryRow(jobSelect+`
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, sessionID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest job: %w", err)
	}
	return job, nil
}
