// Package memory implements the long-term-memory and daily-note file
// format, plus the tokenize-score-rank search used by the memory tools.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// DailyNoteWindow bounds how far back daily notes are searched.
const DailyNoteWindow = 30 * 24 * time.Hour

// DefaultSearchLimit and MaxSearchLimit bound the number of ranked results
// a search call returns.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

// Store reads and writes the workspace's memory/ directory: MEMORY.md (the
// long-term file) and memory/YYYY-MM-DD.md (daily notes).
type Store struct {
	dir string
	now func() time.Time
}

// New creates a Store rooted at dir (the workspace's memory/ directory).
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) longTermPath() string {
	return filepath.Join(s.dir, "MEMORY.md")
}

func (s *Store) dailyNotePath(day time.Time) string {
	return filepath.Join(s.dir, day.Format("2006-01-02")+".md")
}

// WriteLongTerm appends content as a new bullet line to MEMORY.md. Empty
// content is rejected.
func (s *Store) WriteLongTerm(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content must not be empty")
	}
	path := s.longTermPath()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	line := "- " + strings.ReplaceAll(content, "\n", " ") + "\n"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDailyNote appends a timestamped section to today's daily note,
// creating the `# Daily Note - YYYY-MM-DD` header if the file is new.
// Empty content is rejected.
func (s *Store) WriteDailyNote(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content must not be empty")
	}
	now := s.now()
	path := s.dailyNotePath(now)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if isNew {
		if _, err := f.WriteString(fmt.Sprintf("# Daily Note - %s\n\n", now.Format("2006-01-02"))); err != nil {
			return "", err
		}
	}
	section := fmt.Sprintf("## %s UTC\n\n%s\n\n---\n\n", now.UTC().Format("15:04:05"), content)
	if _, err := f.WriteString(section); err != nil {
		return "", err
	}
	return path, nil
}

// Tokenize lowercases query, strips non-alphanumerics, splits on
// whitespace, and drops empty tokens.
func Tokenize(query string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(query))
	return strings.Fields(stripped)
}

// score counts the number of distinct tokens present as a case-insensitive
// substring of content.
func score(tokens []string, content string) int {
	lower := strings.ToLower(content)
	n := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}

// excerpt returns the first line of content, truncated to 147 chars + "…"
// if the full first line exceeds 150 chars.
func excerpt(content string) string {
	first := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		first = content[:idx]
	}
	if len(first) <= 150 {
		return first
	}
	return first[:147] + "…"
}

// Search tokenizes query, scores every long-term bullet and every daily
// note section from the last DailyNoteWindow, and returns the top limit
// (DefaultSearchLimit when limit <= 0, capped at MaxSearchLimit) sorted by
// score desc then date desc.
func (s *Store) Search(query string, limit int) ([]models.RankedMemory, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	tokens := Tokenize(query)

	var candidates []models.RankedMemory

	longTerm, err := s.readLongTermEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range longTerm {
		sc := score(tokens, e.Content)
		if sc == 0 {
			continue
		}
		candidates = append(candidates, models.RankedMemory{
			Content: e.Content, Timestamp: e.Timestamp, Source: models.SourceLongTerm,
			Score: sc, Excerpt: excerpt(e.Content),
		})
	}

	notes, err := s.readDailyNotes(s.now())
	if err != nil {
		return nil, err
	}
	for _, e := range notes {
		sc := score(tokens, e.Content)
		if sc == 0 {
			continue
		}
		candidates = append(candidates, models.RankedMemory{
			Content: e.Content, Timestamp: e.Timestamp, Source: models.SourceDailyNote,
			Score: sc, Excerpt: excerpt(e.Content),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Timestamp.After(candidates[j].Timestamp)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// readLongTermEntries splits MEMORY.md into one entry per non-empty line,
// with a leading "-" bullet marker stripped; non-bullet lines such as a
// "# Memory" heading are entries too. Missing file yields no entries, not
// an error.
func (s *Store) readLongTermEntries() ([]models.DailyNoteEntry, error) {
	raw, err := os.ReadFile(s.longTermPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []models.DailyNoteEntry
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if trimmed == "" {
			continue
		}
		out = append(out, models.DailyNoteEntry{Content: trimmed, Timestamp: s.now()})
	}
	return out, nil
}

// readDailyNotes reads every daily-note file within DailyNoteWindow of
// asOf, splitting each on its "## HH:MM:SS UTC" section headers.
func (s *Store) readDailyNotes(asOf time.Time) ([]models.DailyNoteEntry, error) {
	var out []models.DailyNoteEntry
	for d := 0; d < int(DailyNoteWindow/(24*time.Hour)); d++ {
		day := asOf.AddDate(0, 0, -d)
		raw, err := os.ReadFile(s.dailyNotePath(day))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, parseDailyNote(string(raw), day)...)
	}
	return out, nil
}

var sectionHeader = regexp.MustCompile(`(?m)^## (\d{2}:\d{2}:\d{2}) UTC$`)

func parseDailyNote(raw string, day time.Time) []models.DailyNoteEntry {
	matches := sectionHeader.FindAllStringSubmatchIndex(raw, -1)
	var out []models.DailyNoteEntry
	for i, m := range matches {
		start := m[1]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(strings.TrimSuffix(raw[start:end], "---"))
		if body == "" {
			continue
		}
		timeStr := raw[m[2]:m[3]]
		ts, err := time.Parse("2006-01-02 15:04:05", day.Format("2006-01-02")+" "+timeStr)
		if err != nil {
			ts = day
		}
		out = append(out, models.DailyNoteEntry{Content: body, Timestamp: ts})
	}
	return out
}
