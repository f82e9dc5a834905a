package storage

import "database/sql"

// migrateV001 creates the views table. The AUTOINCREMENT id is the
// recency key: ids are never reused, so id order is insertion order.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS views (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			ts     INTEGER NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			page   TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_views_domain_page ON views(domain, page)`,
		`CREATE INDEX IF NOT EXISTS idx_views_ts          ON views(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
