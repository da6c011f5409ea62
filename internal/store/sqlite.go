package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/migrations"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

// SQLiteStore implements Store on top of database/sql and go-sqlite3.
// SQLite is single-writer, so the pool is capped at one connection:
// concurrent callers serialize on it rather than racing sqlite3 itself.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and does not migrate) the sqlite database at path. Run
// the goose migrations in migrations/ before first use.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate applies every pending goose migration embedded in
// migrations.FS. Call it once at process startup, before Open's
// caller does anything else with the store.
func (s *SQLiteStore) Migrate() error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int { if b { return 1 }; return 0 }

func (s *SQLiteStore) CreateSite(ctx context.Context, site model.Site) (model.Site, error) {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	site.CreatedAt = now
	site.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_sites
			(id, domain, name, start_url, max_depth, max_pages, same_domain_only,
			 crawl_frequency_minutes, enabled, last_crawl_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.Domain, site.Name, site.StartURL, site.MaxDepth, site.MaxPages,
		boolToInt(site.SameDomainOnly), site.CrawlFrequencyMinutes, boolToInt(site.Enabled),
		formatTimePtr(site.LastCrawlAt), formatTime(site.CreatedAt), formatTime(site.UpdatedAt))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return model.Site{}, failure.Conflict(fmt.Sprintf("site with domain %q already exists", site.Domain))
		}
		return model.Site{}, failure.Persistence(err)
	}
	return site, nil
}

func (s *SQLiteStore) UpdateSite(ctx context.Context, id string, patch model.SitePatch) (model.Site, error) {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return model.Site{}, err
	}

	if patch.Name != nil {
		site.Name = *patch.Name
	}
	if patch.StartURL != nil {
		site.StartURL = *patch.StartURL
	}
	if patch.MaxDepth != nil {
		site.MaxDepth = *patch.MaxDepth
	}
	if patch.MaxPages != nil {
		site.MaxPages = *patch.MaxPages
	}
	if patch.SameDomainOnly != nil {
		site.SameDomainOnly = *patch.SameDomainOnly
	}
	if patch.CrawlFrequencyMinutes != nil {
		site.CrawlFrequencyMinutes = *patch.CrawlFrequencyMinutes
	}
	if patch.Enabled != nil {
		site.Enabled = *patch.Enabled
	}
	site.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_sites SET name=?, start_url=?, max_depth=?, max_pages=?,
			same_domain_only=?, crawl_frequency_minutes=?, enabled=?, updated_at=?
		WHERE id=?`,
		site.Name, site.StartURL, site.MaxDepth, site.MaxPages, boolToInt(site.SameDomainOnly),
		site.CrawlFrequencyMinutes, boolToInt(site.Enabled), formatTime(site.UpdatedAt), id)
	if err != nil {
		return model.Site{}, failure.Persistence(err)
	}
	return site, nil
}

// TouchSiteLastCrawl sets last_crawl_at=now, best-effort per spec §4.5
// step 3 (Supervisor does not abort a launch if this write fails).
func (s *SQLiteStore) TouchSiteLastCrawl(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE crawl_sites SET last_crawl_at=?, updated_at=? WHERE id=?`,
		formatTime(at), formatTime(time.Now().UTC()), id)
	if err != nil {
		return failure.Persistence(err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM crawl_sites WHERE id=?`, id)
	if err != nil {
		return failure.Persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return failure.Persistence(err)
	}
	if n == 0 {
		return failure.NotFound("site not found")
	}
	// No cascade: crawl_tasks.site_id is ON DELETE SET NULL at the schema
	// level, so existing tasks keep their history with site_id cleared.
	return nil
}

func (s *SQLiteStore) GetSite(ctx context.Context, id string) (model.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, name, start_url, max_depth, max_pages, same_domain_only,
			crawl_frequency_minutes, enabled, last_crawl_at, created_at, updated_at
		FROM crawl_sites WHERE id=?`, id)
	return scanSite(row)
}

func (s *SQLiteStore) ListSites(ctx context.Context, filter SiteFilter) ([]model.Site, error) {
	query := `
		SELECT id, domain, name, start_url, max_depth, max_pages, same_domain_only,
			crawl_frequency_minutes, enabled, last_crawl_at, created_at, updated_at
		FROM crawl_sites`
	var args []any
	if filter.Enabled != nil {
		query += ` WHERE enabled = ?`
		args = append(args, boolToInt(*filter.Enabled))
	}
	// created_at has second precision; rowid breaks ties by insertion order.
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, failure.Persistence(err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (model.Site, error) {
	var site model.Site
	var sameDomainOnly, enabled int
	var lastCrawlAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&site.ID, &site.Domain, &site.Name, &site.StartURL, &site.MaxDepth,
		&site.MaxPages, &sameDomainOnly, &site.CrawlFrequencyMinutes, &enabled,
		&lastCrawlAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Site{}, failure.NotFound("site not found")
	}
	if err != nil {
		return model.Site{}, failure.Persistence(err)
	}

	site.SameDomainOnly = sameDomainOnly != 0
	site.Enabled = enabled != 0
	if site.LastCrawlAt, err = parseTimePtr(lastCrawlAt); err != nil {
		return model.Site{}, failure.Persistence(err)
	}
	if site.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Site{}, failure.Persistence(err)
	}
	if site.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Site{}, failure.Persistence(err)
	}
	return site, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Status = model.TaskPending
	task.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_tasks
			(id, site_id, start_url, max_depth, max_pages, same_domain_only, status,
			 progress, total_pages, success_pages, failed_pages, error_message,
			 started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, '', ?, ?, ?)`,
		task.ID, nullableString(task.SiteID), task.StartURL, task.MaxDepth, task.MaxPages,
		boolToInt(task.SameDomainOnly), task.Status,
		formatTimePtr(task.StartedAt), formatTimePtr(task.FinishedAt), formatTime(task.CreatedAt))
	if err != nil {
		return model.Task{}, failure.Persistence(err)
	}
	return task, nil
}

func (s *SQLiteStore) PatchTask(ctx context.Context, id string, patch model.TaskProgressPatch) (model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}

	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Progress != nil {
		task.Progress = *patch.Progress
	}
	if patch.TotalPages != nil {
		task.TotalPages = *patch.TotalPages
	}
	if patch.SuccessPages != nil {
		task.SuccessPages = *patch.SuccessPages
	}
	if patch.FailedPages != nil {
		task.FailedPages = *patch.FailedPages
	}
	if patch.ErrorMessage != nil {
		task.ErrorMessage = *patch.ErrorMessage
	}
	if patch.StartedAt != nil {
		task.StartedAt = patch.StartedAt
	}
	if patch.FinishedAt != nil {
		task.FinishedAt = patch.FinishedAt
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_tasks SET status=?, progress=?, total_pages=?, success_pages=?,
			failed_pages=?, error_message=?, started_at=?, finished_at=?
		WHERE id=?`,
		task.Status, task.Progress, task.TotalPages, task.SuccessPages, task.FailedPages,
		task.ErrorMessage, formatTimePtr(task.StartedAt), formatTimePtr(task.FinishedAt), id)
	if err != nil {
		return model.Task{}, failure.Persistence(err)
	}
	return task, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, start_url, max_depth, max_pages, same_domain_only, status,
			progress, total_pages, success_pages, failed_pages, error_message,
			started_at, finished_at, created_at
		FROM crawl_tasks WHERE id=?`, id)
	return scanTask(row)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter, page, pageSize int) ([]model.Task, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	where := ""
	var args []any
	if filter.SiteID != nil {
		where = " WHERE site_id = ?"
		args = append(args, *filter.SiteID)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM crawl_tasks" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, failure.Persistence(err)
	}

	query := `
		SELECT id, site_id, start_url, max_depth, max_pages, same_domain_only, status,
			progress, total_pages, success_pages, failed_pages, error_message,
			started_at, finished_at, created_at
		FROM crawl_tasks` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, failure.Persistence(err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	return tasks, total, rows.Err()
}

func scanTask(row rowScanner) (model.Task, error) {
	var task model.Task
	var siteID, errMsg sql.NullString
	var sameDomainOnly int
	var status string
	var startedAt, finishedAt sql.NullString
	var createdAt string

	err := row.Scan(&task.ID, &siteID, &task.StartURL, &task.MaxDepth, &task.MaxPages,
		&sameDomainOnly, &status, &task.Progress, &task.TotalPages, &task.SuccessPages,
		&task.FailedPages, &errMsg, &startedAt, &finishedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, failure.NotFound("task not found")
	}
	if err != nil {
		return model.Task{}, failure.Persistence(err)
	}

	if siteID.Valid {
		task.SiteID = &siteID.String
	}
	task.SameDomainOnly = sameDomainOnly != 0
	task.Status = model.TaskStatus(status)
	task.ErrorMessage = errMsg.String
	if task.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return model.Task{}, failure.Persistence(err)
	}
	if task.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return model.Task{}, failure.Persistence(err)
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, failure.Persistence(err)
	}
	return task, nil
}

// SweepOrphanedTasks implements the startup recovery policy decided in
// SPEC_FULL.md: a task still "running" when the process starts belonged
// to a goroutine that died with the previous process, since crawls are
// never resumed across restarts.
func (s *SQLiteStore) SweepOrphanedTasks(ctx context.Context) (int, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_tasks SET status=?, error_message=?, finished_at=?
		WHERE status=?`,
		model.TaskFailed, "orphaned: process restarted", now, model.TaskRunning)
	if err != nil {
		return 0, failure.Persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, failure.Persistence(err)
	}
	return int(n), nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
