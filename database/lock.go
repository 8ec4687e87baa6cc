package database

import (
	"context"
	"fmt"

	"github.com/siherrmann/coursesearch/helper"
)

// AdvisoryLock is a family of session level postgres advisory locks, one per
// name, each held on its own connection. Locks with different names never
// conflict.
type AdvisoryLock struct {
	db  *helper.Database
	key int32
}

// NewAdvisoryLock creates a lock family for the given key
func NewAdvisoryLock(db *helper.Database, key int32) (*AdvisoryLock, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	return &AdvisoryLock{db: db, key: key}, nil
}

// TryLock tries to take the lock for name without waiting. On success the
// returned release function must be called to unlock and return the connection.
func (l *AdvisoryLock) TryLock(ctx context.Context, name string) (func() error, bool, error) {
	conn, err := l.db.Instance.Conn(ctx)
	if err != nil {
		return nil, false, helper.NewError("acquire connection", err)
	}

	var locked bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, hashtext($2))`, l.key, name).Scan(&locked)
	if err != nil {
		conn.Close()
		return nil, false, helper.NewError("try advisory lock", err)
	}
	if !locked {
		conn.Close()
		return nil, false, nil
	}

	release := func() error {
		defer conn.Close()
		_, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1, hashtext($2))`, l.key, name)
		if err != nil {
			return helper.NewError("advisory unlock", err)
		}
		return nil
	}

	return release, true, nil
}
