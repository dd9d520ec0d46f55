package sqlite

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id      INTEGER PRIMARY KEY,
	payload TEXT    NOT NULL,
	size    INTEGER NOT NULL
);`

	insertEntrySQL  = `INSERT INTO entries (id, payload, size) VALUES (?, ?, ?)`
	listEntriesSQL  = `SELECT id FROM entries ORDER BY id ASC`
	readEntrySQL    = `SELECT payload FROM entries WHERE id = ?`
	replaceEntrySQL = `UPDATE entries SET payload = ?, size = ? WHERE id = ?`
	deleteEntrySQL  = `DELETE FROM entries WHERE id = ?`
	lastEntrySQL    = `SELECT COALESCE(MAX(id), 0) FROM entries`
	totalSizeSQL    = `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM entries`
	oldestSizesSQL  = `SELECT id, size FROM entries WHERE id <> ? ORDER BY id ASC LIMIT ?`
)
