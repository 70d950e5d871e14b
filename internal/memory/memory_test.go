package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

func newStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s := New(t.TempDir())
	s.now = func() time.Time { return now }
	return s
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, World!"))
	assert.Equal(t, []string{"a1", "b2"}, Tokenize("  a1 \t b2 "))
	assert.Empty(t, Tokenize("!!! ???"))
}

func TestWriteLongTermAppendsBullet(t *testing.T) {
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	s := newStore(t, now)

	path, err := s.WriteLongTerm("likes black coffee")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "- likes black coffee\n")
}

func TestWriteLongTermRejectsEmpty(t *testing.T) {
	s := newStore(t, time.Now())
	_, err := s.WriteLongTerm("   ")
	assert.Error(t, err)
}

func TestWriteDailyNoteFormat(t *testing.T) {
	now := time.Date(2026, 7, 1, 14, 30, 5, 0, time.UTC)
	s := newStore(t, now)

	path, err := s.WriteDailyNote("met with the plumber")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.dir, "2026-07-01.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.True(t, strings.HasPrefix(content, "# Daily Note - 2026-07-01\n"))
	assert.Contains(t, content, "## 14:30:05 UTC\n\nmet with the plumber\n\n---\n")

	// A second write appends a section, not a second header.
	_, err = s.WriteDailyNote("second entry")
	require.NoError(t, err)
	raw, _ = os.ReadFile(path)
	assert.Equal(t, 1, strings.Count(string(raw), "# Daily Note"))
}

func TestSearchRanksByDistinctTokenMatches(t *testing.T) {
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	s := newStore(t, now)

	_, err := s.WriteLongTerm("coffee order: oat milk flat white")
	require.NoError(t, err)
	_, err = s.WriteLongTerm("prefers tea in the evening")
	require.NoError(t, err)
	_, err = s.WriteDailyNote("bought coffee beans and oat milk")
	require.NoError(t, err)

	results, err := s.Search("oat milk coffee", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be sorted by score desc")
	}
	assert.Equal(t, 3, results[0].Score)

	for _, r := range results {
		assert.NotContains(t, r.Content, "tea", "zero-score entries must be excluded")
	}
}

func TestSearchLimitClamped(t *testing.T) {
	now := time.Now()
	s := newStore(t, now)
	for i := 0; i < 30; i++ {
		_, err := s.WriteLongTerm("note about cats number " + string(rune('a'+i%26)))
		require.NoError(t, err)
	}
	results, err := s.Search("cats", 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), MaxSearchLimit)

	results, err = s.Search("cats", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), DefaultSearchLimit)
}

func TestSearchIncludesDailyNotesWithinWindow(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := newStore(t, now)

	old := now.AddDate(0, 0, -40)
	s.now = func() time.Time { return old }
	_, err := s.WriteDailyNote("ancient fact about dragons")
	require.NoError(t, err)

	s.now = func() time.Time { return now }
	_, err = s.WriteDailyNote("recent fact about dragons")
	require.NoError(t, err)

	results, err := s.Search("dragons", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "notes older than the window must be ignored")
	assert.Equal(t, models.SourceDailyNote, results[0].Source)
	assert.Contains(t, results[0].Content, "recent")
}

func TestExcerptTruncation(t *testing.T) {
	short := excerpt("short first line\nsecond line")
	assert.Equal(t, "short first line", short)

	long := strings.Repeat("x", 200)
	got := excerpt(long)
	assert.Equal(t, 147+len("…"), len(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}
