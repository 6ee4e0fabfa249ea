package journal

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/example/slotchaser/internal/db"
	"github.com/example/slotchaser/internal/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptValidate(t *testing.T) {
	ok := Attempt{Instance: "1-1", Phase: "reserving", NextPhase: "reserving", Outcome: "failed"}
	require.NoError(t, ok.Validate())

	missing := ok
	missing.Instance = ""
	assert.Error(t, missing.Validate())

	missing = ok
	missing.NextPhase = ""
	assert.Error(t, missing.Validate())

	missing = ok
	missing.Outcome = ""
	assert.Error(t, missing.Validate())
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Record(context.Background(), Attempt{}))
}

// Runs against a real Postgres when SLOTCHASER_TEST_DATABASE_URL is set.
func TestRepoRoundTrip(t *testing.T) {
	url := os.Getenv("SLOTCHASER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SLOTCHASER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	d, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Ping(ctx))
	require.NoError(t, migrate.Up(ctx, d))

	repo := NewRepo(d)
	instance := fmt.Sprintf("test-%d", time.Now().UnixNano())

	_, err = repo.Last(ctx, instance)
	require.True(t, db.IsNotFound(err))

	for _, outcome := range []string{"failed", "succeeded"} {
		require.NoError(t, repo.Record(ctx, Attempt{
			Instance:  instance,
			URL:       "https://example.org/book/1",
			Date:      "3/4/2025",
			Phase:     "logged_out",
			NextPhase: "reserving",
			Outcome:   outcome,
		}))
	}

	got, err := repo.Recent(ctx, instance, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "succeeded", got[0].Outcome)

	last, err := repo.Last(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, got[0].ID, last.ID)
}
