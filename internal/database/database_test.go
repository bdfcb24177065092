package database

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trane/pkg/models"
)

// testDB opens an in-memory SQLite database with the schema applied.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, initializeSchema(db))
	return db
}

func TestTrialRepositoryAppendAndRecent(t *testing.T) {
	repo := NewTrialRepository(testDB(t))
	ctx := context.Background()

	for i, score := range []float32{1, 3, 5} {
		err := repo.Append(ctx, &models.Trial{
			ExerciseID: "a::l_0::ex_0",
			Score:      score,
			Timestamp:  int64(1000 + i),
		})
		require.NoError(t, err)
	}
	// A trial for another exercise does not leak into the reads.
	require.NoError(t, repo.Append(ctx, &models.Trial{
		ExerciseID: "a::l_0::ex_1", Score: 4, Timestamp: 2000,
	}))

	trials, err := repo.Recent(ctx, "a::l_0::ex_0", 10)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, float32(5), trials[0].Score)
	assert.Equal(t, float32(1), trials[2].Score)

	// The limit keeps only the most recent trials.
	trials, err = repo.Recent(ctx, "a::l_0::ex_0", 2)
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, float32(5), trials[0].Score)

	has, err := repo.HasTrials(ctx, "a::l_0::ex_0")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repo.HasTrials(ctx, "a::l_0::ex_9")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTrialRepositoryTieBreakByInsertion(t *testing.T) {
	repo := NewTrialRepository(testDB(t))
	ctx := context.Background()

	// Two trials at the same timestamp: the later insertion comes first.
	require.NoError(t, repo.Append(ctx, &models.Trial{ExerciseID: "e", Score: 2, Timestamp: 1000}))
	require.NoError(t, repo.Append(ctx, &models.Trial{ExerciseID: "e", Score: 4, Timestamp: 1000}))

	trials, err := repo.Recent(ctx, "e", 10)
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, float32(4), trials[0].Score)
}

func TestRewardRepository(t *testing.T) {
	repo := NewRewardRepository(testDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.Append(ctx, &models.UnitReward{
			UnitID:    "a",
			Reward:    0.5,
			Weight:    1.0,
			Timestamp: int64(1000 + i*1000),
		})
		require.NoError(t, err)
	}

	rewards, err := repo.Recent(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, int64(3000), rewards[0].Timestamp)

	// Cleanup drops only events older than the cutoff.
	removed, err := repo.DeleteOlderThan(ctx, 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	rewards, err = repo.Recent(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestBlacklistRepository(t *testing.T) {
	repo := NewBlacklistRepository(testDB(t))
	ctx := context.Background()

	contains, err := repo.Contains(ctx, "a")
	require.NoError(t, err)
	assert.False(t, contains)

	require.NoError(t, repo.Add(ctx, "a"))
	require.NoError(t, repo.Add(ctx, "a")) // adding twice is a no-op
	require.NoError(t, repo.Add(ctx, "b"))

	contains, err = repo.Contains(ctx, "a")
	require.NoError(t, err)
	assert.True(t, contains)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, all)

	require.NoError(t, repo.Remove(ctx, "a"))
	contains, err = repo.Contains(ctx, "a")
	require.NoError(t, err)
	assert.False(t, contains)
}

func TestReviewListRepository(t *testing.T) {
	repo := NewReviewListRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "a::l_0"))
	require.NoError(t, repo.Add(ctx, "a::l_0"))
	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a::l_0"}, all)

	require.NoError(t, repo.Remove(ctx, "a::l_0"))
	all, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
