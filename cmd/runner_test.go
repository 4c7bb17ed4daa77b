package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/tasks"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

func setupStore(t *testing.T) *repositories.Store {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.New(db)
}

// run executes the CLI with args against a fresh runner and returns its output.
func run(t *testing.T, opts RunnerOpts, args ...string) (*Runner, string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	opts.Output = output
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	runner := NewRunner(opts)
	t.Cleanup(func() { runner.Close() })

	argv := append([]string{"jukebox", "--config", filepath.Join(t.TempDir(), "missing.toml")}, args...)
	err := newApp(runner).Run(context.Background(), argv)
	return runner, output.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := &bytes.Buffer{}
			httpClient := &http.Client{}
			store := setupStore(t)
			tokens := services.StaticToken("tok")

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				Input:      input,
				HTTPClient: httpClient,
				Store:      store,
				Tokens:     tokens,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
			if runner.tokens != tokens {
				t.Error("expected tokens to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("wire", func(t *testing.T) {
		t.Run("builds the pipeline without credentials", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Store: setupStore(t), Logger: shared.DiscardLogger()})
			if err := runner.wire(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if runner.catalogs == nil || runner.resolver == nil || runner.assembler == nil || runner.scheduler == nil {
				t.Error("expected all services to be wired")
			}
			if runner.tokens != nil {
				t.Error("expected no token provider without credentials")
			}
		})

		t.Run("opens the configured database", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "jukebox.db")
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger()})
			t.Cleanup(func() { runner.Close() })

			if err := runner.wire(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, config.Database.Path)
			if runner.db == nil {
				t.Error("expected runner to own the database handle")
			}
		})
	})
}

func TestConfigure(t *testing.T) {
	t.Run("loads the config file over defaults", func(t *testing.T) {
		path := writeFile(t, "config.toml", "[maintenance]\ndeadline_ms = 5000\nbatch_limit = 7\n")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.DiscardLogger()})

		err := newApp(runner).Run(context.Background(), []string{"jukebox", "--config", path, "--log-level", "debug", "zones"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.Maintenance.BatchLimit != 7 || runner.config.Maintenance.DeadlineMS != 5000 {
			t.Errorf("expected file values, got %+v", runner.config.Maintenance)
		}
		if runner.config.Maintenance.HealingMinRemainingMS != 1500 {
			t.Errorf("expected default for missing key, got %d", runner.config.Maintenance.HealingMinRemainingMS)
		}
		if runner.configPath != path {
			t.Errorf("expected configPath %s, got %s", path, runner.configPath)
		}
	})

	t.Run("rejects an invalid config", func(t *testing.T) {
		path := writeFile(t, "config.toml", "[maintenance]\ndeadline_ms = 0\n")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.DiscardLogger()})

		err := newApp(runner).Run(context.Background(), []string{"jukebox", "--config", path, "zones"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("setup config writes the template once", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.DiscardLogger()})

		if err := newApp(runner).Run(context.Background(), []string{"jukebox", "--config", path, "setup", "config"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "[maintenance]") {
			t.Errorf("expected template content, got %s", content)
		}

		runner = NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.DiscardLogger()})
		if err := newApp(runner).Run(context.Background(), []string{"jukebox", "--config", path, "setup", "config"}); err == nil {
			t.Error("expected error when the file already exists")
		}
	})

	t.Run("setup database migrates and rollback reverts", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "jukebox.db")
		config := shared.DefaultConfig()
		config.Database.Path = dbPath

		_, out, err := run(t, RunnerOpts{Config: config}, "setup", "database")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, dbPath)
		if !strings.Contains(out, "Database ready") {
			t.Errorf("expected confirmation, got %q", out)
		}

		if _, out, err = run(t, RunnerOpts{Config: config}, "setup", "rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Rolled back") {
			t.Errorf("expected rollback confirmation, got %q", out)
		}
	})
}

func TestZonesCommand(t *testing.T) {
	t.Run("classifies each argument", func(t *testing.T) {
		_, out, err := run(t, RunnerOpts{}, "zones", "--round", "10", "0.5", "0.2", "0.7")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, want := range []string{"resolution", "good_influence", "desperation", "high_influence", "63.6%", "hard convergence active"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("rejects non-numeric gravities", func(t *testing.T) {
		_, _, err := run(t, RunnerOpts{}, "zones", "high")
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestTickCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("applies queued write-backs", func(t *testing.T) {
		store := setupStore(t)
		if _, err := store.EnqueueLazyUpdate(ctx, models.ItemArtistProfile, "artist1", []byte(`{"spotifyId":"artist1","name":"One"}`)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		_, out, err := run(t, RunnerOpts{Store: store, Catalogs: tu.NewMockCatalog().Factory()}, "tick", "--json")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var res tasks.TickResult
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", out, err)
		}
		if res.Claimed != 1 || res.Processed != 1 || res.Remaining != 0 {
			t.Errorf("unexpected tick result %+v", res)
		}
		if p, err := store.GetArtist(ctx, "artist1"); err != nil || p.Name != "One" {
			t.Errorf("expected artist to be cached, got %+v %v", p, err)
		}
	})

	t.Run("prints a summary with progress", func(t *testing.T) {
		store := setupStore(t)
		store.EnqueueHealing(ctx, models.HealingAction{Type: models.HealTrackDetails, EntityID: "track1"})

		_, out, err := run(t, RunnerOpts{Store: store, Catalogs: tu.NewMockCatalog().Factory()}, "tick", "--token", "tok", "--await=false")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, want := range []string{"Maintenance tick", "Claimed: 0", "Healing: detached, 1 attempted", "queue drained"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if ok, _ := store.IsPlayable(ctx, "track1"); ok {
			t.Error("expected detached healing to finish before the command returned")
		}
	})
}

func TestRoundCommands(t *testing.T) {
	newCatalog := func() *tu.MockCatalog {
		catalog := tu.NewMockCatalog()
		catalog.AddArtist(models.ArtistProfile{SpotifyID: "artistA", Name: "A", Genres: []string{"indie"}})
		catalog.TopTracks["artistA"] = tu.Tracks("trackA", "artistA", 5)
		return catalog
	}

	t.Run("stage2 writes the pool in the requested format", func(t *testing.T) {
		catalog := newCatalog()
		request := writeFile(t, "stage2.json", `{"artistIds":["artistA"]}`)
		output := filepath.Join(t.TempDir(), "pool.csv")

		_, out, err := run(t, RunnerOpts{Store: setupStore(t), Catalogs: catalog.Factory()},
			"round", "stage2", "--token", "tok", "--request", request, "--output", output)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(out, "Wrote 1 tracks") {
			t.Errorf("unexpected output %q", out)
		}
		if content := tu.MustReadFile(t, output); !strings.Contains(content, "artistA,top-track,artistA") {
			t.Errorf("expected organic seed in CSV, got %s", content)
		}
		if tokens := catalog.Tokens(); len(tokens) == 0 || tokens[0] != "tok" {
			t.Errorf("expected the flag token to be used, got %v", tokens)
		}
	})

	t.Run("stage1 reads the request from stdin", func(t *testing.T) {
		catalog := newCatalog()
		input := strings.NewReader(`{"roundNumber":1,"playbackState":{"currentTrack":{"id":"track0","artistId":"artistA"}}}`)

		_, out, err := run(t, RunnerOpts{Store: setupStore(t), Catalogs: catalog.Factory(), Input: input},
			"round", "stage1", "--token", "tok", "--request", "-")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, `"seedArtistId": "artistA"`) {
			t.Errorf("expected seed artist in output, got %s", out)
		}
	})

	t.Run("malformed request", func(t *testing.T) {
		request := writeFile(t, "stage2.json", `{"artistIds":`)
		_, _, err := run(t, RunnerOpts{Store: setupStore(t), Catalogs: newCatalog().Factory()},
			"round", "stage2", "--token", "tok", "--request", request)
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("without a token", func(t *testing.T) {
		t.Setenv("JUKEBOX_TOKEN", "")
		request := writeFile(t, "stage2.json", `{"artistIds":["artistA"]}`)

		_, _, err := run(t, RunnerOpts{Store: setupStore(t), Catalogs: newCatalog().Factory()},
			"round", "stage2", "--request", request)
		if !errors.Is(err, shared.ErrMissingToken) {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
	})

	t.Run("token endpoint failure", func(t *testing.T) {
		t.Setenv("JUKEBOX_TOKEN", "")
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"

		resp := &http.Response{
			StatusCode: http.StatusInternalServerError,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"error":"server_error"}`)),
		}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		request := writeFile(t, "stage2.json", `{"artistIds":["artistA"]}`)

		_, _, err := run(t, RunnerOpts{Config: config, HTTPClient: client, Store: setupStore(t), Catalogs: newCatalog().Factory()},
			"round", "stage2", "--request", request)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})
}

func TestQueueCommands(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	item, err := store.EnqueueLazyUpdate(ctx, models.ItemArtistProfile, "artist1", nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	store.EnqueueLazyUpdate(ctx, models.ItemArtistProfile, "artist2", nil)
	store.EnqueueHealing(ctx, models.HealingAction{Type: models.HealTrackDetails, EntityID: "track1"})
	store.ClaimPending(ctx, 2)
	store.CompleteItem(ctx, item.ID)

	t.Run("stats", func(t *testing.T) {
		_, out, err := run(t, RunnerOpts{Store: store}, "queue", "stats", "--json")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var counts QueueCounts
		if err := json.Unmarshal([]byte(out), &counts); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", out, err)
		}
		if counts.Lazy[models.StatusProcessing] != 1 || counts.Lazy[models.StatusCompleted] != 1 || counts.Healing != 1 {
			t.Errorf("unexpected counts %+v", counts)
		}
	})

	t.Run("clear", func(t *testing.T) {
		_, out, err := run(t, RunnerOpts{Store: store}, "queue", "clear", "--older-than", "0s")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Cleared 1 items") {
			t.Errorf("unexpected output %q", out)
		}
		if _, err := store.GetQueueItem(ctx, item.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected completed item to be deleted, got %v", err)
		}
	})
}
