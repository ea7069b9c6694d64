// SQLite-backed index persistence, an opt-in alternative to the packed
// binary sidecar file for archives that are queried repeatedly: it trades
// the zero-dependency raw format for an indexed `pcr` column so LookupGE
// can be pushed down to a SQL query instead of a scan.
package pcrindex

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pcr_positions (
	byte_offset INTEGER NOT NULL,
	pid INTEGER NOT NULL,
	pcr INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pcr_positions_pcr ON pcr_positions(pcr);
`

// OpenSQLiteIndex opens (creating if necessary) a SQLite index database at
// path.
func OpenSQLiteIndex(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pcrindex: opening sqlite index %s failed: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pcrindex: creating sqlite schema in %s failed: %w", path, err)
	}
	return db, nil
}

// WriteSQLiteIndex persists records into db, replacing any existing rows.
func WriteSQLiteIndex(db *sql.DB, records []PcrPosition) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("pcrindex: starting sqlite transaction failed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pcr_positions`); err != nil {
		return fmt.Errorf("pcrindex: clearing sqlite index failed: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO pcr_positions (byte_offset, pid, pcr) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("pcrindex: preparing sqlite insert failed: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(int64(r.ByteOffset), int64(r.PID), r.PCR); err != nil {
			return fmt.Errorf("pcrindex: inserting record failed: %w", err)
		}
	}
	return tx.Commit()
}

// LookupGESQLite pushes LookupGE down to an indexed SQL query instead of
// scanning in memory.
func LookupGESQLite(db *sql.DB, pcr int64) (PcrPosition, bool, error) {
	row := db.QueryRow(`SELECT byte_offset, pid, pcr FROM pcr_positions WHERE pcr >= ? ORDER BY pcr ASC LIMIT 1`, pcr)

	var offset, pid, rowPCR int64
	if err := row.Scan(&offset, &pid, &rowPCR); err != nil {
		if err == sql.ErrNoRows {
			return PcrPosition{}, false, nil
		}
		return PcrPosition{}, false, fmt.Errorf("pcrindex: querying sqlite index failed: %w", err)
	}
	return PcrPosition{ByteOffset: uint64(offset), PID: uint16(pid), PCR: rowPCR}, true, nil
}
