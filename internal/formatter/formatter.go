// package formatter renders candidate pools and maintenance reports as CSV, Markdown, and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/tasks"
)

// Format names an output format of the CLI.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return FormatJSON
	}
}

// PoolToCSV converts a candidate pool to CSV with columns: ID, Name, Artist, ArtistID, Source, SeedArtistID
func PoolToCSV(seeds []models.CandidateSeed) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "ArtistID", "Source", "SeedArtistID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, seed := range seeds {
		record := []string{
			seed.Track.ID,
			seed.Track.Name,
			seed.Track.ArtistName,
			seed.Track.ArtistID,
			string(seed.Source),
			seed.SeedArtistID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// PoolToMarkdown renders a candidate pool as a Markdown list, annotating tracks with their artist's genres when known.
func PoolToMarkdown(seeds []models.CandidateSeed, profiles map[string]models.ArtistProfile) ([]byte, error) {
	var buf bytes.Buffer

	organic := 0
	for _, seed := range seeds {
		if seed.Source == models.SourceTopTrack {
			organic++
		}
	}

	buf.WriteString("# Candidate pool\n\n")
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(seeds)))
	buf.WriteString(fmt.Sprintf("**Organic**: %d\n", organic))
	buf.WriteString(fmt.Sprintf("**Embedding**: %d\n\n", len(seeds)-organic))

	buf.WriteString("## Tracks\n\n")
	for i, seed := range seeds {
		genrePart := ""
		if p, ok := profiles[seed.Track.ArtistID]; ok && len(p.Genres) > 0 {
			genrePart = fmt.Sprintf(" (%s)", strings.Join(p.Genres, ", "))
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, seed.Track.ArtistName, seed.Track.Name, genrePart, seed.Source))
	}

	return buf.Bytes(), nil
}

// PoolToText converts a candidate pool to plain text.
func PoolToText(seeds []models.CandidateSeed) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(seeds)))
	for i, seed := range seeds {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, seed.Track.ArtistName, seed.Track.Name))
	}

	return buf.Bytes(), nil
}

// TickToText summarizes a maintenance tick as plain text.
func TickToText(res *tasks.TickResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Claimed: %d\n", res.Claimed))
	buf.WriteString(fmt.Sprintf("Processed: %d\n", res.Processed))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", res.Failed))
	buf.WriteString(fmt.Sprintf("Remaining: %d\n", res.Remaining))
	if res.Reclaimed > 0 {
		buf.WriteString(fmt.Sprintf("Reclaimed: %d\n", res.Reclaimed))
	}
	if res.DeadlineReached {
		buf.WriteString("Deadline reached\n")
	}
	if res.GenreBackfill.Ran {
		buf.WriteString(fmt.Sprintf("Genre backfill: %d resolved, %d failed\n", res.GenreBackfill.Resolved, res.GenreBackfill.Failed))
	}
	if res.Healing.Dispatched {
		state := "awaited"
		if res.Healing.Detached {
			state = "detached"
		}
		buf.WriteString(fmt.Sprintf("Healing: %s, %d attempted\n", state, res.Healing.Attempted))
	}
	buf.WriteString(fmt.Sprintf("Catalog calls: %d\n", res.APICalls.Total))
	buf.WriteString(fmt.Sprintf("Duration: %sms\n", strconv.FormatInt(res.DurationMS, 10)))
	for _, e := range res.Errors {
		buf.WriteString(fmt.Sprintf("Error: %s\n", e))
	}

	return buf.Bytes()
}

// WritePool writes a candidate pool to path in the format its extension names.
//
// JSON is the caller's job, since it encodes the whole stage result.
func WritePool(path string, seeds []models.CandidateSeed, profiles map[string]models.ArtistProfile) error {
	var (
		data []byte
		err  error
	)
	switch FormatFromPath(path) {
	case FormatCSV:
		data, err = PoolToCSV(seeds)
	case FormatMarkdown:
		data, err = PoolToMarkdown(seeds, profiles)
	case FormatText:
		data, err = PoolToText(seeds)
	default:
		return fmt.Errorf("unsupported pool format for %s", path)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
