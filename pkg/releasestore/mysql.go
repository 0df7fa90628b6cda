package releasestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/immune-gmbh/firmware-publisher/pkg/release"
)

// the table always contains at most one row
const releaseRowID = 1

// MEDIUMTEXT fits any version the endpoint accepts (form values are
// limited to 1MiB).
const createTableQuery = `CREATE TABLE IF NOT EXISTS firmware_release (
	id TINYINT UNSIGNED NOT NULL PRIMARY KEY,
	version MEDIUMTEXT CHARACTER SET utf8mb4 NOT NULL,
	firmware LONGBLOB NOT NULL,
	updated_at DATETIME NOT NULL
)`

// upgrades tables created with "version VARCHAR(255)"
const migrateVersionColumnQuery = `ALTER TABLE firmware_release
	MODIFY version MEDIUMTEXT CHARACTER SET utf8mb4 NOT NULL`

// MySQL keeps the release as a single row of table "firmware_release".
type MySQL struct {
	DB *sqlx.DB
}

var _ Store = (*MySQL)(nil)

func newMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, ErrInitMySQL{Err: err, DSN: dsn}
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, ErrMySQLPing{Err: err}
	}

	stor := &MySQL{
		DB: sqlx.NewDb(db, "mysql"),
	}
	for _, query := range []string{createTableQuery, migrateVersionColumnQuery} {
		if _, err := stor.DB.Exec(query); err != nil {
			db.Close()
			return nil, ErrInitMySQL{Err: err, DSN: dsn}
		}
	}
	return stor, nil
}

func (stor *MySQL) ReadVersion(ctx context.Context) (string, error) {
	var version string
	err := stor.DB.GetContext(ctx, &version, "SELECT version FROM firmware_release WHERE id = ?", releaseRowID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound{}
	case err != nil:
		return "", ErrRead{What: "version", Err: err}
	}
	return release.DecodeVersionRecord([]byte(version)), nil
}

func (stor *MySQL) ReadFirmware(ctx context.Context) ([]byte, error) {
	var firmware []byte
	err := stor.DB.GetContext(ctx, &firmware, "SELECT firmware FROM firmware_release WHERE id = ?", releaseRowID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound{}
	case err != nil:
		return nil, ErrRead{What: "firmware", Err: err}
	}
	return firmware, nil
}

func (stor *MySQL) WriteRelease(ctx context.Context, version string, firmware []byte) error {
	tx, err := stor.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ErrSaveFirmware{Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil {
			logger.FromCtx(ctx).Errorf("unable to rollback: %v", err)
		}
	}()

	if firmware == nil {
		firmware = []byte{}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO firmware_release (id, version, firmware, updated_at) VALUES (?, '', ?, ?) "+
			"ON DUPLICATE KEY UPDATE firmware = VALUES(firmware), updated_at = VALUES(updated_at)",
		releaseRowID, firmware, time.Now().UTC(),
	)
	if err != nil {
		return ErrSaveFirmware{Err: err}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE firmware_release SET version = ? WHERE id = ?",
		release.NormalizeVersion(version), releaseRowID,
	)
	if err != nil {
		return ErrWriteVersion{Err: err}
	}

	if err := tx.Commit(); err != nil {
		// nothing was persisted
		return ErrSaveFirmware{Err: err}
	}
	committed = true
	return nil
}

func (stor *MySQL) Close() error {
	return stor.DB.Close()
}
