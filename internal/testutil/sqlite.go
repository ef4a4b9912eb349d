// Package testutil holds fixtures shared by package tests: an isolated
// in-memory database, a settable clock and a recording notifier.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rent360-scheduling-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns a migrated in-memory database private to the test.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := database.Open(database.Options{
		Driver:   database.DriverSQLite,
		DSN:      dsn,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) AddDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

type EmittedEvent struct {
	Type    string
	Payload map[string]interface{}
}

// Notifier records every emitted event in order.
type Notifier struct {
	mu     sync.Mutex
	events []EmittedEvent
}

func (n *Notifier) Emit(_ context.Context, eventType string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, EmittedEvent{Type: eventType, Payload: payload})
}

func (n *Notifier) Events() []EmittedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EmittedEvent, len(n.events))
	copy(out, n.events)
	return out
}

func (n *Notifier) Types() []string {
	evts := n.Events()
	types := make([]string, len(evts))
	for i, e := range evts {
		types[i] = e.Type
	}
	return types
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}
