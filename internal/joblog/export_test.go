package joblog

import "database/sql"

// BumpSchemaVersionForTest rewrites the stored schema version.
func BumpSchemaVersionForTest(path string, version int) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec("UPDATE schema_version SET version = ?", version)
	return err
}
