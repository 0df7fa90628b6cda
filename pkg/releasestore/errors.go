package releasestore

import (
	"fmt"
)

// ErrNotFound means no release was published yet.
type ErrNotFound struct{}

func (err ErrNotFound) Error() string {
	return "no release published"
}

// ErrSaveFirmware implements "error", for the description see Error.
type ErrSaveFirmware struct {
	Err error
}

func (err ErrSaveFirmware) Error() string {
	return fmt.Sprintf("unable to save the firmware image: %v", err.Err)
}

func (err ErrSaveFirmware) Unwrap() error {
	return err.Err
}

// ErrWriteVersion implements "error", for the description see Error.
type ErrWriteVersion struct {
	Err error
}

func (err ErrWriteVersion) Error() string {
	return fmt.Sprintf("unable to write the version record: %v", err.Err)
}

func (err ErrWriteVersion) Unwrap() error {
	return err.Err
}

// ErrRead implements "error", for the description see Error.
type ErrRead struct {
	What string
	Err  error
}

func (err ErrRead) Error() string {
	return fmt.Sprintf("unable to read %s: %v", err.What, err.Err)
}

func (err ErrRead) Unwrap() error {
	return err.Err
}

// ErrUnknownScheme implements "error", for the description see Error.
type ErrUnknownScheme struct {
	Scheme string
}

func (err ErrUnknownScheme) Error() string {
	return fmt.Sprintf("unknown scheme '%s'", err.Scheme)
}

// ErrInitMySQL implements "error", for the description see Error.
type ErrInitMySQL struct {
	Err error
	DSN string
}

func (err ErrInitMySQL) Error() string {
	return fmt.Sprintf("unable to initialize a MySQL client (DSN: '%s'): %v", err.DSN, err.Err)
}

func (err ErrInitMySQL) Unwrap() error {
	return err.Err
}

// ErrMySQLPing implements "error", for the description see Error.
type ErrMySQLPing struct {
	Err error
}

func (err ErrMySQLPing) Error() string {
	return fmt.Sprintf("unable to ping the MySQL server: %v", err.Err)
}

func (err ErrMySQLPing) Unwrap() error {
	return err.Err
}
