// Package repository contains the MySQL data access logic, separated from
// HTTP handlers and services.  Repositories return the sentinels defined
// in package model (wrapped with context) so callers can test them with
// errors.Is without knowing about the driver.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// mapNoRows converts sql.ErrNoRows into sentinel and passes other errors
// through unchanged.
func mapNoRows(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// expectOne turns a zero-rows-affected result into sentinel.
func expectOne(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

// inTx runs fn inside a transaction.  The transaction is rolled back
// unless fn returns nil and the commit succeeds.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
