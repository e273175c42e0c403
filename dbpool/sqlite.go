package dbpool

import (
	"database/sql"
	"fmt"
	"time"
)

// openSQLite opens a SQLite database with retry logic.
// SQLite uses WAL mode for better concurrency, but still needs retry logic
// for SQLITE_BUSY under contention.
//
// NOTE: the application must import a SQLite driver registered as "sqlite"
// (e.g. _ "modernc.org/sqlite").
func (m *DBManager) openSQLite(opts OpenOptions) (*sql.DB, error) {
	maxRetries, baseMs := retryParams(opts)

	// modernc driver pragma syntax.
	connStr := opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if opts.Mode == ModeReadOnly {
		connStr += "&mode=ro"
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open("sqlite", connStr)
		if err == nil {
			configurePool(db, opts, EngineSQLite)
			err = db.Ping()
			if err != nil {
				db.Close()
			}
		}

		if err != nil {
			lastErr = err
			m.logger(fmt.Sprintf("[dbpool] SQLite open attempt %d/%d failed: %v", i+1, maxRetries, err))
			if maxRetries > 1 {
				time.Sleep(time.Duration(baseMs*(i+1)) * time.Millisecond)
			}
			continue
		}

		return db, nil
	}

	return nil, fmt.Errorf("dbpool: failed to open SQLite %q after %d retries: %w", opts.Path, maxRetries, lastErr)
}
