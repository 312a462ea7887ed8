package database

import (
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"

	"github.com/PvtMilo/gen-ai/internal/models"
)

const jobSelect = `
	SELECT id, session_id, mode, overlay_image_path, status,
	       result_image_path, compressed_image_path, error_message, log_text,
	       created_at, drive_file_id, drive_link, download_link, qr_url, drive_uploaded_at
	FROM jobs
`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.ID, &j.SessionID, &j.Mode, &j.OverlayImagePath, &j.Status,
		&j.ResultImagePath, &j.CompressedImagePath, &j.ErrorMessage, &j.LogText,
		&j.CreatedAt, &j.DriveFileID, &j.DriveLink, &j.DownloadLink, &j.QRURL, &j.DriveUploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *Client) CreateJob(sessionID int64, mode string, overlayPath sql.NullString) (*models.Job, error) {
	row := c.db.QueryRow(`
		INSERT INTO jobs (session_id, mode, overlay_image_path, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, session_id, mode, overlay_image_path, status,
		          result_image_path, compressed_image_path, error_message, log_text,
		          created_at, drive_file_id, drive_link, download_link, qr_url, drive_uploaded_at
	`, sessionID, mode, overlayPath, models.JobStatusQueued, time.Now().UTC())

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (c *Client) GetJob(jobID int64) (*models.Job, error) {
	job, err := scanJob(c.db.QueryRow(jobSelect+` WHERE id = $1`, jobID))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// MarkJobProcessing flips the job to processing and resets the log
// buffer and error message for the new run.
func (c *Client) MarkJobProcessing(jobID int64) error {
	_, err := c.db.Exec(`
		UPDATE jobs
		SET status = $1, log_text = '', error_message = NULL
		WHERE id = $2
	`, models.JobStatusProcessing, jobID)
	return err
}

// AppendJobLog persists one checkpoint line immediately so pollers can
// tail progress while the job runs.
func (c *Client) AppendJobLog(jobID int64, line string) error {
	_, err := c.db.Exec(`
		UPDATE jobs
		SET log_text = COALESCE(log_text, '') || $1 || E'\n'
		WHERE id = $2
	`, line, jobID)
	return err
}

// TruncateUTF8 shortens s to at most limit bytes without splitting a
// multi-byte rune; Postgres rejects text columns holding invalid UTF-8.
func TruncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (c *Client) SetJobFailed(jobID int64, message string) error {
	// error_message column is capped at 500 chars
	message = TruncateUTF8(message, 500)
	_, err := c.db.Exec(`
		UPDATE jobs SET status = $1, error_message = $2 WHERE id = $3
	`, models.JobStatusFailed, message, jobID)
	return err
}

func (c *Client) SetJobDone(jobID int64, resultPath string, compressedPath sql.NullString) error {
	_, err := c.db.Exec(`
		UPDATE jobs
		SET status = $1, result_image_path = $2, compressed_image_path = $3
		WHERE id = $4
	`, models.JobStatusDone, resultPath, compressedPath, jobID)
	return err
}

func (c *Client) SetJobDriveInfo(jobID int64, fileID, driveLink, downloadLink, qrURL string) error {
	_, err := c.db.Exec(`
		UPDATE jobs
		SET drive_file_id = $1, drive_link = $2, download_link = $3, qr_url = $4, drive_uploaded_at = $5
		WHERE id = $6
	`, fileID, driveLink, downloadLink, qrURL, time.Now().UTC(), jobID)
	return err
}

// ListGalleryJobs returns done jobs that have at least one image path,
// newest first.
func (c *Client) ListGalleryJobs(limit int) ([]models.Job, error) {
	query := jobSelect + `
		WHERE status = $1
		  AND (compressed_image_path IS NOT NULL OR result_image_path IS NOT NULL)
		ORDER BY id DESC
	`
	args := []interface{}{models.JobStatusDone}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsForDriveSync returns jobs with a result but (unless force) no
// drive link yet, newest first.
func (c *Client) ListJobsForDriveSync(limit int, force bool) ([]models.Job, error) {
	query := jobSelect + ` WHERE result_image_path IS NOT NULL`
	if !force {
		query += ` AND drive_link IS NULL`
	}
	query += ` ORDER BY id DESC`

	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for drive sync: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListUnfinishedJobs returns jobs stranded in queued or processing,
// oldest first. Used to re-queue work after a restart.
func (c *Client) ListUnfinishedJobs() ([]models.Job, error) {
	rows, err := c.db.Query(jobSelect+`
		WHERE status = $1 OR status = $2
		ORDER BY id ASC
	`, models.JobStatusQueued, models.JobStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListEventJobsInRange returns event-mode jobs created inside the UTC
// window [start, end), id ascending. Used by maintenance planning.
func (c *Client) ListEventJobsInRange(startUTC, endUTC time.Time) ([]models.Job, error) {
	rows, err := c.db.Query(jobSelect+`
		WHERE mode = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id ASC
	`, models.JobModeEvent, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to list event jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// SessionIDsWithOtherJobs returns the subset of sessionIDs that still
// have at least one job outside excludeJobIDs.
func (c *Client) SessionIDsWithOtherJobs(sessionIDs, excludeJobIDs []int64) ([]int64, error) {
	rows, err := c.db.Query(`
		SELECT DISTINCT session_id
		FROM jobs
		WHERE session_id = ANY($1) AND NOT (id = ANY($2))
	`, pq.Array(sessionIDs), pq.Array(excludeJobIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to find remaining sessions: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// UserIDsForSessions maps session ids to their owning user ids.
func (c *Client) UserIDsForSessions(sessionIDs []int64) (map[int64]int64, error) {
	rows, err := c.db.Query(`
		SELECT id, user_id FROM photo_sessions WHERE id = ANY($1)
	`, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load session owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[int64]int64)
	for rows.Next() {
		var sessionID, userID int64
		if err := rows.Scan(&sessionID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan session owner: %w", err)
		}
		owners[sessionID] = userID
	}
	return owners, rows.Err()
}

// UserIDsWithOtherSessions returns the subset of userIDs that still own
// at least one session outside excludeSessionIDs.
func (c *Client) UserIDsWithOtherSessions(userIDs, excludeSessionIDs []int64) ([]int64, error) {
	rows, err := c.db.Query(`
		SELECT DISTINCT user_id
		FROM photo_sessions
		WHERE user_id = ANY($1) AND NOT (id = ANY($2))
	`, pq.Array(userIDs), pq.Array(excludeSessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to find remaining users: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// DeleteRows removes jobs, then sessions, then users, in one
// transaction, and returns the per-table deletion counts.
func (c *Client) DeleteRows(jobIDs, sessionIDs, userIDs []int64) (jobs, sessions, users int64, err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if len(jobIDs) > 0 {
		res, execErr := tx.Exec(`DELETE FROM jobs WHERE id = ANY($1)`, pq.Array(jobIDs))
		if execErr != nil {
			err = fmt.Errorf("failed to delete jobs: %w", execErr)
			return
		}
		jobs, _ = res.RowsAffected()
	}

	if len(sessionIDs) > 0 {
		res, execErr := tx.Exec(`DELETE FROM photo_sessions WHERE id = ANY($1)`, pq.Array(sessionIDs))
		if execErr != nil {
			err = fmt.Errorf("failed to delete sessions: %w", execErr)
			return
		}
		sessions, _ = res.RowsAffected()
	}

	if len(userIDs) > 0 {
		res, execErr := tx.Exec(`DELETE FROM users WHERE id = ANY($1)`, pq.Array(userIDs))
		if execErr != nil {
			err = fmt.Errorf("failed to delete users: %w", execErr)
			return
		}
		users, _ = res.RowsAffected()
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return
}

// EventReportRow is one billable generation joined with its user.
type EventReportRow struct {
	JobID        int64
	UserID       int64
	UserName     string
	Mode         string
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

// ListEventReportRows returns successfully completed, non-errored
// event-mode jobs created inside the UTC window [start, end), oldest
// first.
func (c *Client) ListEventReportRows(startUTC, endUTC time.Time) ([]EventReportRow, error) {
	rows, err := c.db.Query(`
		SELECT j.id, u.id, u.name, j.mode, j.error_message, j.created_at
		FROM jobs j
		JOIN photo_sessions s ON j.session_id = s.id
		JOIN users u ON s.user_id = u.id
		WHERE j.mode = $1
		  AND j.status = $2
		  AND j.error_message IS NULL
		  AND j.created_at >= $3
		  AND j.created_at < $4
		ORDER BY j.created_at ASC, j.id ASC
	`, models.JobModeEvent, models.JobStatusDone, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	var result []EventReportRow
	for rows.Next() {
		var r EventReportRow
		if err := rows.Scan(&r.JobID, &r.UserID, &r.UserName, &r.Mode, &r.ErrorMessage, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
