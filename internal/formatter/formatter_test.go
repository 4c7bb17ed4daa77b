package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/stats"
	"github.com/desertthunder/jukebox/internal/tasks"
	th "github.com/desertthunder/jukebox/internal/testing"
)

func testPool() []models.CandidateSeed {
	return []models.CandidateSeed{
		{
			Track:        models.Track{ID: "track1", Name: "Song One", ArtistID: "artist1", ArtistName: "Artist One"},
			Source:       models.SourceTopTrack,
			SeedArtistID: "artist1",
		},
		{
			Track:  models.Track{ID: "track2", Name: "Song, Two", ArtistID: "artist2", ArtistName: "Artist Two"},
			Source: models.SourceEmbedding,
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("PoolToCSV", func(t *testing.T) {
		data, err := PoolToCSV(testPool())
		if err != nil {
			t.Fatalf("PoolToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Name,Artist,ArtistID,Source,SeedArtistID") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "track1,Song One,Artist One,artist1,top-track,artist1") {
			t.Errorf("CSV missing track1 row, got: %s", output)
		}
		if !strings.Contains(output, `"Song, Two"`) {
			t.Errorf("CSV should quote fields with commas, got: %s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected 3 lines (header + 2 tracks), got %d", len(lines))
		}
	})

	t.Run("PoolToMarkdown", func(t *testing.T) {
		profiles := map[string]models.ArtistProfile{
			"artist1": {SpotifyID: "artist1", Name: "Artist One", Genres: []string{"indie", "pop"}},
		}
		data, err := PoolToMarkdown(testPool(), profiles)
		if err != nil {
			t.Fatalf("PoolToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Candidate pool",
			"**Tracks**: 2",
			"**Organic**: 1",
			"**Embedding**: 1",
			"1. Artist One - Song One (indie, pop) [top-track]",
			"2. Artist Two - Song, Two [embedding]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("PoolToText", func(t *testing.T) {
		data, err := PoolToText(testPool())
		if err != nil {
			t.Fatalf("PoolToText failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Tracks: 2\n\n") {
			t.Errorf("unexpected header, got: %s", output)
		}
		if !strings.Contains(output, "1. Artist One - Song One") {
			t.Errorf("text missing track1, got: %s", output)
		}
	})

	t.Run("TickToText", func(t *testing.T) {
		res := &tasks.TickResult{
			Claimed:         4,
			Processed:       2,
			Failed:          1,
			Remaining:       1,
			DeadlineReached: true,
			DurationMS:      8001,
			GenreBackfill:   tasks.BackfillResult{Ran: true, Resolved: 3, Failed: 2},
			Healing:         tasks.HealingReport{Dispatched: true, Detached: true, Attempted: 2},
			APICalls:        stats.Snapshot{Total: 7},
			Errors:          []string{"requeue: locked"},
		}

		output := string(TickToText(res))
		for _, want := range []string{
			"Claimed: 4",
			"Remaining: 1",
			"Deadline reached",
			"Genre backfill: 3 resolved, 2 failed",
			"Healing: detached, 2 attempted",
			"Catalog calls: 7",
			"Duration: 8001ms",
			"Error: requeue: locked",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("summary missing %q, got: %s", want, output)
			}
		}
		if strings.Contains(output, "Reclaimed") {
			t.Error("zero reclaim count should be omitted")
		}
	})
}

func TestWritePool(t *testing.T) {
	t.Run("format follows the extension", func(t *testing.T) {
		tests := map[string]Format{
			"pool.csv":      FormatCSV,
			"pool.MD":       FormatMarkdown,
			"pool.markdown": FormatMarkdown,
			"pool.txt":      FormatText,
			"pool.json":     FormatJSON,
			"pool":          FormatJSON,
		}
		for path, want := range tests {
			if got := FormatFromPath(path); got != want {
				t.Errorf("FormatFromPath(%q) = %q, expected %q", path, got, want)
			}
		}
	})

	t.Run("writes into nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "pool.csv")
		if err := WritePool(path, testPool(), nil); err != nil {
			t.Fatalf("WritePool failed: %v", err)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "track2") {
			t.Errorf("expected pool content, got %s", content)
		}
	})

	t.Run("rejects JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pool.json")
		if err := WritePool(path, testPool(), nil); err == nil {
			t.Fatal("expected error for JSON path")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected no file to be written")
		}
	})
}
