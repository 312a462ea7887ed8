package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/files"
	"github.com/PvtMilo/gen-ai/internal/models"
)

// ErrInvalidPassword rejects cleanup requests with the wrong password.
var ErrInvalidPassword = errors.New("invalid password")

const resultsPublicPrefix = "/static/results/"

// MaintenanceStore is the database surface needed to plan and execute
// an event cleanup.
type MaintenanceStore interface {
	ListEventJobsInRange(startUTC, endUTC time.Time) ([]models.Job, error)
	SessionIDsWithOtherJobs(sessionIDs, excludeJobIDs []int64) ([]int64, error)
	UserIDsForSessions(sessionIDs []int64) (map[int64]int64, error)
	UserIDsWithOtherSessions(userIDs, excludeSessionIDs []int64) ([]int64, error)
	DeleteRows(jobIDs, sessionIDs, userIDs []int64) (int64, int64, int64, error)
}

// Plan is everything an event cleanup would remove. Preview and
// execute build the same plan, so a preview faithfully predicts the
// matching execute.
type Plan struct {
	JobIDs       []int64
	SessionIDs   []int64
	UserIDs      []int64
	ResultFiles  []string
	MissingFiles int
}

// PreviewResult reports a dry run.
type PreviewResult struct {
	JobsCount             int `json:"jobs_count"`
	ResultFilesCount      int `json:"result_files_count"`
	SessionsToDeleteCount int `json:"sessions_to_delete_count"`
	UsersToDeleteCount    int `json:"users_to_delete_count"`
	MissingFilesCount     int `json:"missing_files_count"`
}

// ExecuteResult reports what a cleanup actually removed.
type ExecuteResult struct {
	JobsDeletedCount        int64    `json:"jobs_deleted_count"`
	ResultFilesTargetCount  int      `json:"result_files_target_count"`
	ResultFilesDeletedCount int      `json:"result_files_deleted_count"`
	SessionsDeletedCount    int64    `json:"sessions_deleted_count"`
	UsersDeletedCount       int64    `json:"users_deleted_count"`
	MissingFilesCount       int      `json:"missing_files_count"`
	FileDeleteWarnings      []string `json:"file_delete_warnings"`
}

// Cleaner removes a date range of event-mode jobs together with the
// sessions and users left orphaned by their removal.
type Cleaner struct {
	store      MaintenanceStore
	resultsDir string
	password   string
	loc        *time.Location
	logger     zerolog.Logger
}

func NewCleaner(store MaintenanceStore, resultsDir, password string, loc *time.Location, logger zerolog.Logger) *Cleaner {
	return &Cleaner{
		store:      store,
		resultsDir: resultsDir,
		password:   password,
		loc:        loc,
		logger:     logger,
	}
}

// Authorize checks the cleanup password.
func (c *Cleaner) Authorize(password string) error {
	if password != c.password {
		return ErrInvalidPassword
	}
	return nil
}

// Preview computes the cleanup plan for the range without touching
// anything.
func (c *Cleaner) Preview(startDate, endDate string) (*PreviewResult, error) {
	plan, err := c.buildPlan(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{
		JobsCount:             len(plan.JobIDs),
		ResultFilesCount:      len(plan.ResultFiles),
		SessionsToDeleteCount: len(plan.SessionIDs),
		UsersToDeleteCount:    len(plan.UserIDs),
		MissingFilesCount:     plan.MissingFiles,
	}, nil
}

// Execute deletes the planned rows in one transaction, then removes
// result files best effort. A file that fails to delete becomes a
// warning, never an error.
func (c *Cleaner) Execute(startDate, endDate string) (*ExecuteResult, error) {
	plan, err := c.buildPlan(startDate, endDate)
	if err != nil {
		return nil, err
	}

	jobs, sessions, users, err := c.store.DeleteRows(plan.JobIDs, plan.SessionIDs, plan.UserIDs)
	if err != nil {
		return nil, err
	}

	deleted := 0
	missing := 0
	warnings := []string{}
	for _, path := range plan.ResultFiles {
		if _, err := os.Stat(path); err != nil {
			missing++
			continue
		}
		if err := os.Remove(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			c.logger.Warn().Err(err).Str("path", path).Msg("Failed to delete result file")
			continue
		}
		deleted++
	}

	return &ExecuteResult{
		JobsDeletedCount:        jobs,
		ResultFilesTargetCount:  len(plan.ResultFiles),
		ResultFilesDeletedCount: deleted,
		SessionsDeletedCount:    sessions,
		UsersDeletedCount:       users,
		MissingFilesCount:       missing,
		FileDeleteWarnings:      warnings,
	}, nil
}

// buildPlan gathers the jobs in range, then works out which sessions
// and users would be fully orphaned once those jobs are gone.
func (c *Cleaner) buildPlan(startDate, endDate string) (*Plan, error) {
	startUTC, endUTC, err := DayRangeUTC(startDate, endDate, c.loc)
	if err != nil {
		return nil, err
	}

	jobs, err := c.store.ListEventJobsInRange(startUTC, endUTC)
	if err != nil {
		return nil, err
	}

	jobIDs := make([]int64, 0, len(jobs))
	sessionSet := make(map[int64]struct{})
	resultFiles := make(map[string]struct{})
	for i := range jobs {
		job := &jobs[i]
		jobIDs = append(jobIDs, job.ID)
		sessionSet[job.SessionID] = struct{}{}

		if !job.ResultImagePath.Valid {
			continue
		}
		public := job.ResultImagePath.String
		if !strings.HasPrefix(public, resultsPublicPrefix) {
			continue
		}
		local, err := files.ResolveStatic(public, resultsPublicPrefix, c.resultsDir)
		if err != nil {
			continue
		}
		resultFiles[local] = struct{}{}
	}

	missing := 0
	fileList := make([]string, 0, len(resultFiles))
	for path := range resultFiles {
		fileList = append(fileList, path)
		if _, err := os.Stat(path); err != nil {
			missing++
		}
	}
	sort.Strings(fileList)

	sessionIDs := keys(sessionSet)
	sessionsToDelete := []int64{}
	usersToDelete := []int64{}
	if len(sessionIDs) > 0 && len(jobIDs) > 0 {
		keep, err := c.store.SessionIDsWithOtherJobs(sessionIDs, jobIDs)
		if err != nil {
			return nil, err
		}
		sessionsToDelete = subtract(sessionIDs, keep)
	}
	if len(sessionsToDelete) > 0 {
		sessionUsers, err := c.store.UserIDsForSessions(sessionsToDelete)
		if err != nil {
			return nil, err
		}
		candidateSet := make(map[int64]struct{}, len(sessionUsers))
		for _, userID := range sessionUsers {
			candidateSet[userID] = struct{}{}
		}
		candidates := keys(candidateSet)
		if len(candidates) > 0 {
			keep, err := c.store.UserIDsWithOtherSessions(candidates, sessionsToDelete)
			if err != nil {
				return nil, err
			}
			usersToDelete = subtract(candidates, keep)
		}
	}

	return &Plan{
		JobIDs:       jobIDs,
		SessionIDs:   sessionsToDelete,
		UserIDs:      usersToDelete,
		ResultFiles:  fileList,
		MissingFiles: missing,
	}, nil
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// subtract returns the members of ids not present in remove, sorted.
func subtract(ids, remove []int64) []int64 {
	removeSet := make(map[int64]struct{}, len(remove))
	for _, id := range remove {
		removeSet[id] = struct{}{}
	}
	out := []int64{}
	for _, id := range ids {
		if _, ok := removeSet[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
