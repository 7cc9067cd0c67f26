package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docstage/search"
)

// newEmbeddingServer answers OpenAI-style embedding requests with [len(text), 1].
func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"embedding": []float32{float32(len(text)), 1}, "index": i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func findFlag(flags []cli.Flag, name string) cli.Flag {
	for _, f := range flags {
		for _, n := range f.Names() {
			if n == name {
				return f
			}
		}
	}
	return nil
}

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"ingest", "sync", "query", "run", "count"} {
		assert.NotNil(t, findCommand(app, name), name)
	}
	assert.NotNil(t, findFlag(app.Flags, "config"))
	assert.NotNil(t, findFlag(app.Flags, "l"), "log-level has alias -l")
}

func TestCommandFlagDefaults(t *testing.T) {
	app := newApp()

	t.Run("source is required", func(t *testing.T) {
		f, ok := findFlag(findCommand(app, "ingest").Flags, "source").(*cli.StringSliceFlag)
		require.True(t, ok)
		assert.True(t, f.Required)
	})

	t.Run("chunk-size defaults to 100", func(t *testing.T) {
		f, ok := findFlag(findCommand(app, "ingest").Flags, "chunk-size").(*cli.IntFlag)
		require.True(t, ok)
		assert.Equal(t, 100, f.Value)
	})

	t.Run("top-k defaults to 3", func(t *testing.T) {
		f, ok := findFlag(findCommand(app, "query").Flags, "top-k").(*cli.IntFlag)
		require.True(t, ok)
		assert.Equal(t, 3, f.Value)
	})

	t.Run("answers are overwritten by default", func(t *testing.T) {
		f, ok := findFlag(findCommand(app, "query").Flags, "overwrite").(*cli.BoolFlag)
		require.True(t, ok)
		assert.True(t, f.Value)
	})

	t.Run("answers path", func(t *testing.T) {
		f, ok := findFlag(findCommand(app, "query").Flags, "answers").(*cli.StringFlag)
		require.True(t, ok)
		assert.Equal(t, search.DefaultAnswersPath, f.Value)
	})
}

func TestIngestRequiresSource(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"docstage", "ingest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestInvalidBackends(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown index", func(t *testing.T) {
		app := newApp()
		err := app.Run([]string{"docstage", "--store-dir", filepath.Join(dir, "a"), "--staging-backend", "badger", "--index", "faiss", "count"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid index")
	})

	t.Run("unknown staging backend", func(t *testing.T) {
		app := newApp()
		err := app.Run([]string{"docstage", "--store-dir", filepath.Join(dir, "b"), "--staging-backend", "s3", "count"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid staging backend")
	})
}

func TestRunEndToEnd(t *testing.T) {
	srv := newEmbeddingServer(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(source, []byte("Hello World, this is a test."), 0o644))
	queries := filepath.Join(dir, "queries.yaml")
	require.NoError(t, os.WriteFile(queries, []byte("queries:\n  - What is tested?\n"), 0o644))
	answers := filepath.Join(dir, "answers", "answers.jsonl")

	global := []string{
		"docstage",
		"--log-level", "error",
		"--store-dir", filepath.Join(dir, "store"),
		"--staging-file", filepath.Join(dir, "output", "data.jsonl"),
		"--index", "badger",
		"--embedding-host", srv.URL,
		"--embedding-model", "test-embed",
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	args := append(append([]string{}, global...), "run",
		"--source", source,
		"--chunk-size", "10",
		"--queries", queries,
		"--answers", answers,
	)
	require.NoError(t, app.Run(args))

	output := out.String()
	assert.Contains(t, output, "Staged 3 chunks from sample.txt")
	assert.Contains(t, output, "Upserted 3 entries into my_collection")
	assert.Contains(t, output, "Total entries in my_collection: 3")
	assert.Contains(t, output, "Saved 1 answers")

	saved, err := search.ReadAnswers(answers)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "What is tested?", saved[0].Query)
	assert.Len(t, saved[0].Results, 3)

	// A second run restages every chunk; the index still holds one entry per id.
	out.Reset()
	app = newApp()
	app.Writer = &out
	require.NoError(t, app.Run(args))
	assert.Contains(t, out.String(), "3 superseded")
	assert.Contains(t, out.String(), "Total entries in my_collection: 3")

	out.Reset()
	app = newApp()
	app.Writer = &out
	require.NoError(t, app.Run(append(append([]string{}, global...), "count")))
	assert.Contains(t, out.String(), "Total entries in my_collection: 3")

	// Refusing to overwrite leaves the previous answers in place.
	app = newApp()
	app.Writer = &out
	err = app.Run(append(append([]string{}, global...), "query",
		"--queries", queries, "--answers", answers, "--overwrite=false"))
	require.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "docstage.yaml")
	content := "collection: from_config\nindex: badger\nstaging-backend: badger\nstore-dir: " +
		filepath.Join(dir, "store") + "\n"
	require.NoError(t, os.WriteFile(config, []byte(content), 0o644))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"docstage", "--config", config, "count"}))
	assert.Contains(t, out.String(), "Total entries in from_config: 0")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnv(filepath.Join(dir, "missing.env")))
	})

	t.Run("values are loaded", func(t *testing.T) {
		path := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(path, []byte("DOCSTAGE_TEST_VALUE=hello\n"), 0o644))
		t.Cleanup(func() { os.Unsetenv("DOCSTAGE_TEST_VALUE") })

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "hello", os.Getenv("DOCSTAGE_TEST_VALUE"))
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						assert.True(t, slog.Default().Enabled(c.Context, tc.expected))
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
