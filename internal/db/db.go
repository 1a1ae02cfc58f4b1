package db

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tally/internal/auth"
	"tally/internal/category"
	"tally/internal/day"
	"tally/internal/jobs"
	"tally/internal/logx"
	"tally/internal/session"
)

// Connect opens Postgres for postgres:// URLs and key=value DSNs, and SQLite
// for anything else ("file:tally.db", ":memory:").
func Connect(dsn string, log hclog.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true, Logger: logger.Discard}
	if log != nil {
		cfg.Logger = logx.Gorm(log)
	}

	var dialector gorm.Dialector
	if isPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if gdb.Dialector.Name() == "sqlite" {
		// one writer at a time; in-memory databases live on a single connection
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&category.PaletteColor{},
		&category.Category{},
		&session.Session{},
		&day.Day{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_days_user_session_date on days(user_id, session_id, date);`,
		`create index if not exists idx_sessions_user_start on sessions(user_id, start);`,
		`create index if not exists idx_categories_user_session on categories(user_id, session_id);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_jobs_type_subject on jobs(type, subject, status);`,
	}
	if gdb.Dialector.Name() == "postgres" {
		stmts = append(stmts,
			// global categories are looked up by the null owner
			`create index if not exists idx_categories_global on categories(name) where user_id is null;`,
			`create index if not exists idx_jobs_pending on jobs(run_at) where status = 'PENDING';`,
		)
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
