/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"designeditor/internal/backend"
	"designeditor/internal/config"
	"designeditor/internal/crash"
	"designeditor/internal/editor"
	apperr "designeditor/internal/errors"
	"designeditor/internal/export"
	applog "designeditor/internal/log"
	"designeditor/internal/mcp"
	"designeditor/internal/pipeline"
	"designeditor/internal/scene"
	"designeditor/internal/storage"
	"designeditor/internal/telemetry"
	"designeditor/internal/version"
)

type appState struct {
	cfg   config.AppConfig
	token string
	crash *crash.Target
	// configPath overrides config.ConfigPath for the token command.
	configPath string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *appState) *cli.App {
	app := &cli.App{
		Name:    "designeditor",
		Usage:   "Design editor core: edit over MCP, render and inspect designs",
		Version: version.String(),
		Commands: []*cli.Command{
			editCmd(a),
			renderCmd(a),
			batchCmd(a),
			validateCmd(),
			journalCmd(a),
			backupsCmd(),
			tokenCmd(a),
			versionCmd(),
		},
	}
	// Errors are returned to main instead of exiting inside the library.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// editCmd serves an editing session over MCP on stdio.
func editCmd(a *appState) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Open a design and serve it to an MCP client on stdio",
		ArgsUsage: "[file" + storage.DocumentExt + "]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "design", Aliases: []string{"d"}, Usage: "Design id for the journal (defaults to the file name)"},
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "Directory for exported files", Value: "."},
			&cli.StringSliceFlag{Name: "disable", Usage: "Tool names to leave unregistered"},
		},
		Action: func(c *cli.Context) error {
			if unknown := mcp.UnknownTools(c.StringSlice("disable")); len(unknown) > 0 {
				return outputError(apperr.Validationf("edit", "unknown tools: %s", strings.Join(unknown, ", ")))
			}
			return runEdit(c.Context, a, c.Args().First(), c.String("design"), c.String("out-dir"), c.StringSlice("disable"))
		},
	}
}

func runEdit(ctx context.Context, a *appState, path, designID, outDir string, disabled []string) error {
	l := applog.WithComponent("cli")
	cfg := a.cfg

	var seed []byte
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := storage.OpenDocument(path)
			if err != nil {
				return outputError(err)
			}
			if f.FromBackup != "" {
				l.Warn("document restored from backup", slog.String("backup", f.FromBackup))
			}
			if seed, err = scene.EncodeDocument(f.Document); err != nil {
				return outputError(err)
			}
		}
	}
	if designID == "" {
		designID = strings.TrimSuffix(filepath.Base(path), storage.DocumentExt)
		if path == "" {
			designID = "untitled"
		}
	}
	ctx = applog.WithSession(ctx, designID)

	ed, err := editor.New(editor.Options{
		Seed:      seed,
		Workspace: scene.Workspace{Width: cfg.Editor.Width, Height: cfg.Editor.Height, Background: cfg.Editor.Background},
		History:   cfg.Editor.HistoryConfig(),
		Debounce:  cfg.Editor.Debounce(),
	})
	if err != nil {
		return outputError(err)
	}
	defer ed.Close()
	a.crash.Name = designID
	a.crash.Snapshot = ed.Document

	loader := export.NewSourceLoader(filepath.Dir(path))
	fonts := export.DefaultFonts()
	opts := pipeline.Options{
		DesignID:     designID,
		KeyPrefix:    cfg.Upload.KeyPrefix,
		UploadScale:  cfg.Export.UploadScale,
		PreviewScale: cfg.Export.PreviewScale,
		Loader:       loader,
		Fonts:        fonts,
		Sink:         telemetry.Default(),
		OnWarning: func(err error) {
			l.Warn("upload failed, keeping local preview", slog.Any("err", err))
		},
	}
	if cfg.Upload.BaseURL != "" {
		opts.Uploader = backend.NewClient(cfg.Upload.BaseURL, a.token).
			WithHTTPClient(&http.Client{Timeout: cfg.Upload.Timeout()})
	}

	st, recovered, err := storage.OpenOrRecover(ctx, cfg.Storage.DataDir, storage.WithPreviewCap(cfg.Storage.PreviewsMaxBytes))
	if err != nil {
		l.Warn("journal unavailable", slog.Any("err", err))
	} else {
		defer st.Close()
		if recovered {
			l.Warn("local store was corrupt and has been rebuilt", slog.String("path", st.Path()))
		}
		opts.Journal = st
	}
	opts.OnSave = func(ctx context.Context, pl pipeline.Payload) error {
		if st != nil && cfg.Storage.KeepSaves > 0 {
			if _, err := st.Prune(ctx, designID, cfg.Storage.KeepSaves); err != nil {
				l.Warn("prune journal failed", slog.Any("err", err))
			}
		}
		if path == "" {
			return nil
		}
		doc, err := scene.ParseDocument(pl.JSON)
		if err != nil {
			return err
		}
		if err := storage.SaveDocument(path, doc); err != nil {
			return err
		}
		_, err = storage.PruneBackups(path, storage.DefaultKeepBackups)
		return err
	}

	p := pipeline.New(ctx, opts)
	defer p.Close()
	obs := pipeline.Observe(ctx, ed, p, cfg.Editor.SaveDebounce(), pipeline.WithResult(func(pl pipeline.Payload, err error) {
		if err == nil {
			l.Info("saved", slog.String("kind", string(pl.Kind)), slog.Bool("uploaded", pl.Uploaded))
		}
	}))
	defer func() {
		ed.Flush()
		obs.Flush()
		obs.Close()
	}()

	l.Info("serving design", slog.String("design", designID), slog.String("file", path))
	sess := &mcp.Session{Editor: ed, Pipeline: p, Loader: loader, Fonts: fonts, OutDir: outDir}
	return mcp.Run(sess, version.Version, disabled...)
}

// renderCmd exports a design in one format.
func renderCmd(a *appState) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a design to png, jpeg, svg or pdf",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: export.KindPNG, Usage: "png|jpeg|svg|pdf"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (defaults to the input name with the format extension)"},
			&cli.Float64Flag{Name: "scale", Aliases: []string{"s"}, Value: 1, Usage: "Raster scale multiplier"},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "JPEG quality 1-100 (defaults to the configured quality)"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Skip the preview cache for raster formats"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(apperr.NewValidation("render", "a design file is required", nil))
			}
			in := c.Args().First()
			f, err := storage.OpenDocument(in)
			if err != nil {
				return outputError(err)
			}
			format := strings.ToLower(c.String("format"))
			if format == "jpg" {
				format = export.KindJPEG
			}
			quality := c.Int("quality")
			if quality == 0 {
				quality = a.cfg.Export.JPEGQuality
			}
			opt := export.EncodeOptions{
				Scale:   c.Float64("scale"),
				Quality: quality,
				Loader:  export.NewSourceLoader(filepath.Dir(in)),
				Fonts:   export.DefaultFonts(),
				Title:   strings.TrimSuffix(filepath.Base(in), storage.DocumentExt),
			}
			var data []byte
			if (format == export.KindPNG || format == export.KindJPEG) && !c.Bool("no-cache") {
				data, err = renderCached(c.Context, a, f.Document, format, opt)
			} else {
				data, _, err = export.Encode(c.Context, f.Document, format, opt)
			}
			if err != nil {
				return outputError(err)
			}
			out := c.String("out")
			if out == "" {
				out = strings.TrimSuffix(in, storage.DocumentExt) + "." + extension(format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"path": out, "format": format, "size": len(data)})
		},
	}
}

// renderCached serves raster renders from the preview cache. A store that cannot be
// opened only costs the cache.
func renderCached(ctx context.Context, a *appState, doc scene.Document, format string, opt export.EncodeOptions) ([]byte, error) {
	st, _, err := storage.OpenOrRecover(ctx, a.cfg.Storage.DataDir, storage.WithPreviewCap(a.cfg.Storage.PreviewsMaxBytes))
	if err != nil {
		applog.WithComponent("cli").Warn("preview cache unavailable", slog.Any("err", err))
		b, _, err := export.Encode(ctx, doc, format, opt)
		return b, err
	}
	defer st.Close()
	blob, err := scene.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	key := storage.PreviewKey(blob, fmt.Sprintf("%s@q%d", format, opt.Quality), scale)
	p, err := st.GetOrCreatePreview(ctx, key, func(ctx context.Context) (storage.Preview, error) {
		b, _, err := export.Encode(ctx, doc, format, opt)
		if err != nil {
			return storage.Preview{}, err
		}
		return storage.Preview{
			Key: key, Format: format, Blob: b,
			W: int(float64(doc.Workspace.Width) * scale), H: int(float64(doc.Workspace.Height) * scale),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p.Blob, nil
}

func extension(format string) string {
	if format == export.KindJPEG {
		return "jpg"
	}
	return format
}

// batchCmd renders a design in several formats at once.
func batchCmd(a *appState) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Render a design with an export preset",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "preset", Aliases: []string{"p"}, Value: string(export.PresetWeb), Usage: "web|print|thumbnail"},
			&cli.StringFlag{Name: "formats", Usage: "Comma-separated formats overriding the preset"},
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "Output directory (defaults to the input directory)"},
			&cli.Float64Flag{Name: "scale", Usage: "Raster scale overriding the preset"},
			&cli.IntFlag{Name: "concurrency", Value: 2, Usage: "Parallel renders"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(apperr.NewValidation("batch", "a design file is required", nil))
			}
			in := c.Args().First()
			f, err := storage.OpenDocument(in)
			if err != nil {
				return outputError(err)
			}
			outDir := c.String("out-dir")
			if outDir == "" {
				outDir = filepath.Dir(in)
			}
			var formats []string
			if s := c.String("formats"); s != "" {
				formats = strings.Split(s, ",")
			}
			outs, err := export.Batch(c.Context, f.Document, export.BatchOptions{
				Preset:      export.PresetName(c.String("preset")),
				Formats:     formats,
				OutDir:      outDir,
				BaseName:    strings.TrimSuffix(filepath.Base(in), storage.DocumentExt),
				Scale:       c.Float64("scale"),
				Quality:     a.cfg.Export.JPEGQuality,
				Loader:      export.NewSourceLoader(filepath.Dir(in)),
				Concurrency: c.Int("concurrency"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, outs)
		},
	}
}

// validateCmd checks a document against the schema and the object invariants.
func validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check that a file is a loadable design document",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(apperr.NewValidation("validate", "a design file is required", nil))
			}
			b, err := os.ReadFile(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			doc, err := scene.ParseDocument(b)
			if err != nil {
				var ee *apperr.EditorError
				if errors.As(err, &ee) && ee.Details != nil {
					_ = outputJSON(c.App.Writer, map[string]any{"valid": false, "details": ee.Details})
				}
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{
				"valid":     true,
				"objects":   len(doc.Objects),
				"width":     doc.Workspace.Width,
				"height":    doc.Workspace.Height,
				"version":   doc.Version,
				"workspace": doc.Workspace.Background,
			})
		},
	}
}

type journalRow struct {
	ID     string `json:"id"`
	Design string `json:"design"`
	TS     string `json:"ts"`
	Kind   string `json:"kind"`
	URL    string `json:"url,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

// journalCmd inspects the autosave journal.
func journalCmd(a *appState) *cli.Command {
	open := func(c *cli.Context) (*storage.Store, error) {
		st, _, err := storage.OpenOrRecover(c.Context, a.cfg.Storage.DataDir, storage.WithPreviewCap(a.cfg.Storage.PreviewsMaxBytes))
		return st, err
	}
	return &cli.Command{
		Name:  "journal",
		Usage: "List, restore and prune saved snapshots",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saves, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "design", Aliases: []string{"d"}, Usage: "Only this design"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
				},
				Action: func(c *cli.Context) error {
					st, err := open(c)
					if err != nil {
						return outputError(err)
					}
					defer st.Close()
					entries, err := st.List(c.Context, c.String("design"), c.Int("limit"))
					if err != nil {
						return outputError(err)
					}
					rows := make([]journalRow, 0, len(entries))
					for _, e := range entries {
						url := e.URL
						if strings.HasPrefix(url, "data:") {
							url = "data:…"
						}
						rows = append(rows, journalRow{
							ID: e.ID, Design: e.DesignID, TS: e.TS.UTC().Format("2006-01-02T15:04:05Z"), Kind: e.Kind,
							URL: url, Width: e.Width, Height: e.Height, Size: len(e.Doc),
						})
					}
					return outputJSON(c.App.Writer, rows)
				},
			},
			{
				Name:      "restore",
				Usage:     "Write a saved snapshot to a document file",
				ArgsUsage: "<id> <file>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(apperr.NewValidation("restore", "an entry id and an output file are required", nil))
					}
					st, err := open(c)
					if err != nil {
						return outputError(err)
					}
					defer st.Close()
					e, err := st.Entry(c.Context, c.Args().Get(0))
					if err != nil {
						return outputError(apperr.NewNotFound("restore", c.Args().Get(0)))
					}
					doc, err := scene.ParseDocument(e.Doc)
					if err != nil {
						return outputError(err)
					}
					out := c.Args().Get(1)
					if err := storage.SaveDocument(out, doc); err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"id": e.ID, "path": out})
				},
			},
			{
				Name:  "prune",
				Usage: "Keep only the newest saves of a design",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "design", Aliases: []string{"d"}, Required: true},
					&cli.IntFlag{Name: "keep", Value: a.cfg.Storage.KeepSaves},
				},
				Action: func(c *cli.Context) error {
					st, err := open(c)
					if err != nil {
						return outputError(err)
					}
					defer st.Close()
					n, err := st.Prune(c.Context, c.String("design"), c.Int("keep"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"removed": n})
				},
			},
		},
	}
}

// backupsCmd lists and prunes the timestamped backups of a document file.
func backupsCmd() *cli.Command {
	return &cli.Command{
		Name:  "backups",
		Usage: "Manage document file backups",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					list, err := storage.Backups(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, list)
				},
			},
			{
				Name:      "prune",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "keep", Value: storage.DefaultKeepBackups}},
				Action: func(c *cli.Context) error {
					n, err := storage.PruneBackups(c.Args().First(), c.Int("keep"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"removed": n})
				},
			},
		},
	}
}

// tokenCmd stores the upload token in the OS keychain.
func tokenCmd(a *appState) *cli.Command {
	save := func(token string) error {
		if a.configPath != "" {
			return config.SaveTo(a.configPath, a.cfg, token)
		}
		return config.Save(a.cfg, token)
	}
	return &cli.Command{
		Name:  "token",
		Usage: "Manage the upload API token",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				ArgsUsage: "<token>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(apperr.NewValidation("token", "a token is required", nil))
					}
					if err := save(c.Args().First()); err != nil {
						return outputError(err)
					}
					a.token = c.Args().First()
					return outputJSON(c.App.Writer, map[string]any{"stored": true})
				},
			},
			{
				Name: "forget",
				Action: func(c *cli.Context) error {
					if err := config.ForgetToken(); err != nil {
						return outputError(err)
					}
					a.token = ""
					return outputJSON(c.App.Writer, map[string]any{"stored": false})
				},
			},
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintln(c.App.Writer, "Design Editor", version.String())
			return err
		},
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI. Editor errors already carry their code.
func outputError(err error) error {
	return cli.Exit(err.Error(), 1)
}
