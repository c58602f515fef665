package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/posenv/internal/testing"
)

func TestCheckDatabaseJob_Run(t *testing.T) {
	db := testingpkg.NewTestDB(t, "requests")

	job := NewCheckDatabaseJob(db, zerolog.Nop())
	assert.Equal(t, "check_database", job.Name())
	require.NoError(t, job.Run())
}

func TestCheckDatabaseJob_ClosedDatabase(t *testing.T) {
	db := testingpkg.NewTestDB(t, "requests")
	require.NoError(t, db.Close())

	err := NewCheckDatabaseJob(db, zerolog.Nop()).Run()
	assert.ErrorContains(t, err, "is corrupted")
}
