package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/supervisor"
)

func testStation(t *testing.T, env config.MapEnv) *station {
	t.Helper()
	s := newStation(config.Load(env))
	s.retryDelay = time.Millisecond
	s.park = func() { t.Fatal("unexpected park") }
	return s
}

func TestRun_BootDisabledParksBeforeHardware(t *testing.T) {
	s := testStation(t, config.MapEnv{"BOOT_DISABLE": "1"})
	parked := false
	s.park = func() { parked = true }
	s.openJournal = func(context.Context, string) (*db.Journal, error) {
		t.Fatal("event log opened while boot is disabled")
		return nil, nil
	}
	s.openHardware = func(context.Context, *config.Config) (*supervisor.Hardware, error) {
		t.Fatal("hardware opened while boot is disabled")
		return nil, nil
	}

	require.NoError(t, s.run(context.Background()))
	assert.True(t, parked)
}

func TestRun_EventLogFailureStillOpensHardware(t *testing.T) {
	s := testStation(t, config.MapEnv{})
	s.openJournal = func(context.Context, string) (*db.Journal, error) {
		return nil, errors.New("file is not a database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0
	s.openHardware = func(ctx context.Context, _ *config.Config) (*supervisor.Hardware, error) {
		attempts++
		if attempts == 2 {
			cancel()
			return nil, ctx.Err()
		}
		return nil, errors.New("serial port missing")
	}

	require.NoError(t, s.run(ctx))
	assert.Equal(t, 2, attempts)
}

func TestStartJournal_GeneratesSessionWithoutEventLog(t *testing.T) {
	s := testStation(t, config.MapEnv{})
	s.openJournal = func(context.Context, string) (*db.Journal, error) {
		return nil, errors.New("not a directory")
	}

	journal, session := s.startJournal(context.Background())
	assert.Nil(t, journal)
	_, err := uuid.Parse(session)
	assert.NoError(t, err)
}

func TestStartJournal_UsesBootSession(t *testing.T) {
	s := testStation(t, config.MapEnv{"PIRA_DB_PATH": filepath.Join(t.TempDir(), "pira.db")})

	journal, session := s.startJournal(context.Background())
	require.NotNil(t, journal)
	defer journal.Close()
	assert.Equal(t, journal.Boot().Session, session)
}

func TestOpenJournal_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	s := testStation(t, config.MapEnv{"PIRA_DB_PATH": filepath.Join(file, "pira.db")})
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	journal, session := s.startJournal(context.Background())
	assert.Nil(t, journal)
	assert.NotEmpty(t, session)
}
