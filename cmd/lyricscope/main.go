// Command lyricscope is the CLI for LyricScope.
// It analyzes lyrics for rhymes and syllable counts, manages stored lyric
// sheets and runs the live editor API server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/core/sqlite"
	"github.com/FocuswithJustin/LyricScope/internal/api"
	"github.com/FocuswithJustin/LyricScope/internal/archive"
	"github.com/FocuswithJustin/LyricScope/internal/export"
	"github.com/FocuswithJustin/LyricScope/internal/importer"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
	"github.com/FocuswithJustin/LyricScope/internal/store"
	"github.com/FocuswithJustin/LyricScope/internal/validation"
)

const version = "0.1.0"

const memoryDB = ":memory:"

// maxInputBytes caps a lyric file or standard input, after decompression.
const maxInputBytes = store.MaxBodyBytes * 4

// CLI defines the command-line interface for lyricscope.
type CLI struct {
	Globals

	Analyze AnalyzeCmd `cmd:"" help:"Analyze a lyric file or standard input"`
	Import  ImportCmd  `cmd:"" help:"Convert a ChordPro or MusicXML file to plain lyrics"`
	Sheet   SheetGroup `cmd:"" help:"Stored lyric sheets"`
	Serve   ServeCmd   `cmd:"" help:"Start the REST and WebSocket API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Globals are flags shared by every command. Each can also come from the
// environment or a JSON config file.
type Globals struct {
	Config    kong.ConfigFlag `help:"Load configuration from a JSON file" type:"existingfile"`
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error" env:"LYRICSCOPE_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format (text, json)" default:"text" enum:"text,json" env:"LYRICSCOPE_LOG_FORMAT"`
	DB        string          `name:"db" help:"Sheet database path (:memory: for a throwaway store)" default:"${default_db}" env:"LYRICSCOPE_DB"`
	Marker    string          `help:"Line that separates sections" default:"---" env:"LYRICSCOPE_MARKER"`

	stdin  io.Reader `kong:"-"`
	stdout io.Writer `kong:"-"`
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

// AfterApply configures logging once flags are resolved.
func (g *Globals) AfterApply() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// dbPath expands ~ and relative --db values. ":memory:" is kept as is.
func (g *Globals) dbPath() string {
	if g.DB == memoryDB {
		return g.DB
	}
	return kong.ExpandPath(g.DB)
}

func (g *Globals) openStore() (*store.Store, error) {
	path := g.dbPath()
	if path != memoryDB {
		if err := validation.ValidatePath(path); err != nil {
			return nil, errors.Wrapf(err, "invalid database path %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory for %s", path)
		}
	}
	return store.Open(path)
}

// readInput reads a named file, or standard input for "" and "-". An xz
// compressed file is unpacked and its name loses the .xz suffix.
func (g *Globals) readInput(file string) (string, []byte, error) {
	var (
		name = file
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		name = ""
		data, err = readLimited(g.in())
	} else {
		if err := validation.ValidatePath(file); err != nil {
			return "", nil, fmt.Errorf("invalid input path: %w", err)
		}
		var f *os.File
		if f, err = os.Open(file); err != nil {
			return "", nil, errors.Wrapf(err, "failed to read %s", file)
		}
		data, err = readLimited(f)
		f.Close()
	}
	if err != nil {
		return "", nil, err
	}

	kind := validation.Sniff(data)
	if kind == validation.ContentXZ {
		zr, err := export.Decompress(bytes.NewReader(data))
		if err != nil {
			return "", nil, err
		}
		if data, err = readLimited(zr); err != nil {
			return "", nil, err
		}
		name = strings.TrimSuffix(name, ".xz")
		kind = validation.Sniff(data)
	}
	if !kind.IsText() {
		return "", nil, errors.NewUnsupported("input content", string(kind))
	}
	return name, data, nil
}

// readLimited reads r up to maxInputBytes and fails on anything longer.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}
	if len(data) > maxInputBytes {
		return nil, errors.NewValidation("input", fmt.Sprintf("input too large (limit %d bytes)", maxInputBytes))
	}
	return data, nil
}

func (g *Globals) importDoc(from, name string, data []byte) (*importer.Document, error) {
	format, err := importer.ParseFormat(from)
	if err != nil {
		return nil, err
	}
	return importer.ImportAs(format, name, data, importer.Options{Marker: g.Marker})
}

// ExportFlags are shared by commands that render an analysis.
type ExportFlags struct {
	Format string `short:"f" help:"Output format (text, json, html, ansi)" default:"text" enum:"text,json,html,ansi"`
	Out    string `short:"o" help:"Write output to a file instead of stdout" type:"path"`
	XZ     bool   `name:"xz" help:"Compress the output with xz"`
	Color  bool   `help:"Emit ANSI colour even when stdout is not a terminal"`
}

func (g *Globals) writeExport(res *analysis.Result, title string, f ExportFlags) (err error) {
	format, err := export.ParseFormat(f.Format)
	if err != nil {
		return err
	}
	w := g.out()
	if f.Out != "" {
		if err := validation.ValidatePath(f.Out); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		file, err := os.Create(f.Out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := file.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
		w = file
	}

	opts := export.Options{Title: title, ForceColor: f.Color}
	if !f.XZ {
		return export.Write(w, res, format, opts)
	}
	zw, err := export.Compress(w)
	if err != nil {
		return err
	}
	if err := export.Write(zw, res, format, opts); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func logAnalysis(res *analysis.Result, source string) {
	logging.AnalysisRun(context.Background(), digest.Short(res.Digest), res.Stats.Lines,
		res.Stats.RhymeGroups+res.Stats.NearRhymeGroups, false, "source", source)
}

// AnalyzeCmd analyzes a lyric file.
type AnalyzeCmd struct {
	File    string `arg:"" optional:"" help:"Lyric file; - or nothing reads standard input"`
	From    string `help:"Input format (auto, text, chordpro, musicxml)" default:"auto" enum:"auto,text,chordpro,musicxml"`
	Palette int    `help:"Number of rhyme colours" default:"30"`
	ExportFlags
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	name, data, err := g.readInput(c.File)
	if err != nil {
		return err
	}
	doc, err := g.importDoc(c.From, name, data)
	if err != nil {
		return err
	}
	res := analysis.Analyze(doc.Body, analysis.Options{Marker: g.Marker, Palette: c.Palette})
	logAnalysis(res, "cli")
	return g.writeExport(res, doc.Title, c.ExportFlags)
}

// ImportCmd converts a file to plain lyrics, optionally saving it.
type ImportCmd struct {
	File  string `arg:"" help:"ChordPro, MusicXML or text file"`
	From  string `help:"Input format (auto, text, chordpro, musicxml)" default:"auto" enum:"auto,text,chordpro,musicxml"`
	Out   string `short:"o" help:"Write the lyrics to a file instead of stdout" type:"path"`
	Save  bool   `help:"Store the lyrics as a new sheet"`
	Title string `short:"t" help:"Sheet title (default: from the file)"`
}

func (c *ImportCmd) Run(g *Globals) error {
	name, data, err := g.readInput(c.File)
	if err != nil {
		return err
	}
	doc, err := g.importDoc(c.From, name, data)
	if err != nil {
		return err
	}

	if c.Save {
		st, err := g.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		title := c.Title
		if title == "" {
			title = doc.Title
		}
		sh, err := st.Create(context.Background(), title, doc.Body)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.out(), "Imported %d lines from %s as sheet %s (%s)\n", doc.Lines, doc.Format, sh.ID, sh.Title)
		return nil
	}

	if c.Out != "" {
		if err := validation.ValidatePath(c.Out); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := os.WriteFile(c.Out, []byte(doc.Body+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprintln(g.out(), doc.Body)
	return err
}

// SheetGroup contains stored sheet operations.
type SheetGroup struct {
	List    SheetListCmd    `cmd:"" help:"List stored sheets"`
	New     SheetNewCmd     `cmd:"" help:"Create a sheet"`
	Show    SheetShowCmd    `cmd:"" help:"Print a sheet's lyrics"`
	Save    SheetSaveCmd    `cmd:"" help:"Replace a sheet's lyrics"`
	Rename  SheetRenameCmd  `cmd:"" help:"Rename a sheet"`
	Delete  SheetDeleteCmd  `cmd:"" help:"Delete a sheet"`
	Export  SheetExportCmd  `cmd:"" help:"Analyze a sheet and write the result"`
	Backup  SheetBackupCmd  `cmd:"" help:"Write every sheet to a .tar.xz or .tar.gz backup"`
	Restore SheetRestoreCmd `cmd:"" help:"Restore sheets from a backup"`
}

// withStore opens the sheet database for the duration of fn.
func (g *Globals) withStore(fn func(context.Context, *store.Store) error) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}

// withReadStore opens the sheet database read-only for fn. A database that
// does not exist yet, or ":memory:", is opened normally and starts empty.
func (g *Globals) withReadStore(fn func(context.Context, *store.Store) error) error {
	st, err := store.OpenReadOnly(g.dbPath())
	if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidInput) {
		return g.withStore(fn)
	}
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}

type SheetListCmd struct {
	JSON bool `help:"Print JSON"`
}

func (c *SheetListCmd) Run(g *Globals) error {
	return g.withReadStore(func(ctx context.Context, st *store.Store) error {
		sheets, err := st.List(ctx)
		if err != nil {
			return err
		}
		w := g.out()
		if c.JSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(sheets)
		}
		if len(sheets) == 0 {
			fmt.Fprintln(w, "No sheets")
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-20s  %s\n", "ID", "UPDATED", "TITLE")
		for _, sh := range sheets {
			fmt.Fprintf(w, "%-36s  %-20s  %s\n", sh.ID, sh.UpdatedAt.Local().Format("2006-01-02 15:04:05"), sh.Title)
		}
		return nil
	})
}

type SheetNewCmd struct {
	File  string `arg:"" optional:"" help:"Initial lyrics; - reads standard input"`
	Title string `short:"t" help:"Sheet title"`
	From  string `help:"Input format (auto, text, chordpro, musicxml)" default:"auto" enum:"auto,text,chordpro,musicxml"`
}

func (c *SheetNewCmd) Run(g *Globals) error {
	var doc importer.Document
	if c.File != "" {
		name, data, err := g.readInput(c.File)
		if err != nil {
			return err
		}
		d, err := g.importDoc(c.From, name, data)
		if err != nil {
			return err
		}
		doc = *d
	}
	title := c.Title
	if title == "" {
		title = doc.Title
	}
	return g.withStore(func(ctx context.Context, st *store.Store) error {
		sh, err := st.Create(ctx, title, doc.Body)
		if err != nil {
			return err
		}
		fmt.Fprintln(g.out(), sh.ID)
		return nil
	})
}

type SheetShowCmd struct {
	ID   string `arg:"" help:"Sheet ID"`
	JSON bool   `help:"Print the sheet as JSON"`
}

func (c *SheetShowCmd) Run(g *Globals) error {
	return g.withReadStore(func(ctx context.Context, st *store.Store) error {
		sh, err := st.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		if c.JSON {
			enc := json.NewEncoder(g.out())
			enc.SetIndent("", "  ")
			return enc.Encode(sh)
		}
		_, err = fmt.Fprintln(g.out(), sh.Body)
		return err
	})
}

type SheetSaveCmd struct {
	ID   string `arg:"" help:"Sheet ID"`
	File string `arg:"" optional:"" help:"New lyrics; - or nothing reads standard input"`
	From string `help:"Input format (auto, text, chordpro, musicxml)" default:"auto" enum:"auto,text,chordpro,musicxml"`
}

func (c *SheetSaveCmd) Run(g *Globals) error {
	name, data, err := g.readInput(c.File)
	if err != nil {
		return err
	}
	doc, err := g.importDoc(c.From, name, data)
	if err != nil {
		return err
	}
	return g.withStore(func(ctx context.Context, st *store.Store) error {
		sh, changed, err := st.Save(ctx, c.ID, doc.Body)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(g.out(), "Saved %s (%s)\n", sh.ID, digest.Short(sh.Digest))
		} else {
			fmt.Fprintf(g.out(), "Unchanged %s\n", sh.ID)
		}
		return nil
	})
}

type SheetRenameCmd struct {
	ID    string `arg:"" help:"Sheet ID"`
	Title string `arg:"" help:"New title"`
}

func (c *SheetRenameCmd) Run(g *Globals) error {
	return g.withStore(func(ctx context.Context, st *store.Store) error {
		sh, err := st.Rename(ctx, c.ID, c.Title)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.out(), "Renamed %s to %q\n", sh.ID, sh.Title)
		return nil
	})
}

type SheetDeleteCmd struct {
	ID string `arg:"" help:"Sheet ID"`
}

func (c *SheetDeleteCmd) Run(g *Globals) error {
	return g.withStore(func(ctx context.Context, st *store.Store) error {
		if err := st.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintf(g.out(), "Deleted %s\n", c.ID)
		return nil
	})
}

type SheetExportCmd struct {
	ID      string `arg:"" help:"Sheet ID"`
	Palette int    `help:"Number of rhyme colours" default:"30"`
	ExportFlags
}

func (c *SheetExportCmd) Run(g *Globals) error {
	return g.withReadStore(func(ctx context.Context, st *store.Store) error {
		sh, err := st.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		res := analysis.Analyze(sh.Body, analysis.Options{Marker: g.Marker, Palette: c.Palette})
		logAnalysis(res, "sheet")
		return g.writeExport(res, sh.Title, c.ExportFlags)
	})
}

type SheetBackupCmd struct {
	Out string `arg:"" help:"Backup file (.tar.xz, .txz, .tar.gz or .tgz)" type:"path"`
}

func (c *SheetBackupCmd) Run(g *Globals) error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid backup path: %w", err)
	}
	comp, err := archive.CompressionFor(c.Out)
	if err != nil {
		return err
	}
	return g.withReadStore(func(ctx context.Context, st *store.Store) (err error) {
		sheets, err := st.Dump(ctx)
		if err != nil {
			return err
		}
		f, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
		if err := archive.Write(f, comp, sheets, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(g.out(), "Backed up %d sheets to %s\n", len(sheets), c.Out)
		return nil
	})
}

type SheetRestoreCmd struct {
	File string `arg:"" help:"Backup file written by sheet backup" type:"existingfile"`
}

func (c *SheetRestoreCmd) Run(g *Globals) error {
	comp, err := archive.CompressionFor(c.File)
	if err != nil {
		return err
	}
	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	_, sheets, err := archive.Read(f, comp)
	if err != nil {
		return err
	}

	return g.withStore(func(ctx context.Context, st *store.Store) error {
		restored := 0
		for _, sh := range sheets {
			wrote, err := st.Restore(ctx, sh)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", sh.ID, err)
			}
			if wrote {
				restored++
			}
		}
		fmt.Fprintf(g.out(), "Restored %d of %d sheets\n", restored, len(sheets))
		return nil
	})
}

// ServeCmd starts the API server.
type ServeCmd struct {
	Port           int      `help:"HTTP server port" default:"8080" env:"LYRICSCOPE_PORT"`
	AllowedOrigins []string `name:"allowed-origins" help:"Origins allowed for CORS and WebSocket (default: any)" sep:"," env:"LYRICSCOPE_ALLOWED_ORIGINS"`
	APIKey         string   `name:"api-key" help:"Require this key in X-API-Key" env:"LYRICSCOPE_API_KEY"`
	TLSCert        string   `name:"tls-cert" help:"TLS certificate file" type:"existingfile"`
	TLSKey         string   `name:"tls-key" help:"TLS key file" type:"existingfile"`
	CacheSize      int      `name:"cache-size" help:"Analysis results kept in memory" default:"256"`
	MaxBody        int64    `name:"max-body" help:"Largest accepted request body in bytes" default:"1048576"`
	MessageRate    int      `name:"message-rate" help:"WebSocket messages per second per client" default:"10"`
	MaxLines       int      `name:"max-lines" help:"Longest buffer analyzed per request, in lines" default:"5000"`
}

func (c *ServeCmd) config(g *Globals) api.Config {
	return api.Config{
		Port:           c.Port,
		Version:        version,
		AllowedOrigins: c.AllowedOrigins,
		Auth:           api.AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey},
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "" || c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
		Analysis:     analysis.Options{Marker: g.Marker},
		CacheSize:    c.CacheSize,
		MaxBodyBytes: c.MaxBody,
		MaxLines:     c.MaxLines,
		WebSocket:    api.WebSocketConfig{MaxMessageRate: c.MessageRate},
	}
}

func (c *ServeCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return api.Start(ctx, c.config(g), st)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(g.out(), "lyricscope version %s\n", version)
	fmt.Fprintf(g.out(), "sqlite driver: %s (%s)\n", info.Package, sqlite.DriverType())
	return nil
}

// defaultDBPath is the sheet database under the user's config directory.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lyricscope.db"
	}
	return filepath.Join(dir, "lyricscope", "sheets.db")
}

// newParser builds the kong parser. Config files are read in order: the
// working directory first, then the user config directory.
func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("lyricscope"),
		kong.Description("LyricScope - rhyme, near-rhyme and syllable analysis for song lyrics"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, "./lyricscope.json", "~/.config/lyricscope/config.json"),
		kong.Vars{"default_db": defaultDBPath()},
		kong.Bind(&cli.Globals),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
