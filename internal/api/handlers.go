package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/core/sqlite"
	"github.com/FocuswithJustin/LyricScope/internal/export"
	"github.com/FocuswithJustin/LyricScope/internal/importer"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
	"github.com/FocuswithJustin/LyricScope/internal/server"
	"github.com/FocuswithJustin/LyricScope/internal/store"
	"github.com/FocuswithJustin/LyricScope/internal/validation"
)

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Sheets  int               `json:"sheets"`
	Clients int               `json:"websocket_clients"`
	Cache   analysisCacheInfo `json:"cache"`
	SQLite  sqlite.Info       `json:"sqlite"`
}

type analysisCacheInfo struct {
	Size     int     `json:"size"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// AnalyzeRequest is the JSON body of POST /analyze.
type AnalyzeRequest struct {
	Text    string `json:"text"`
	Marker  string `json:"marker,omitempty"`
	Palette int    `json:"palette,omitempty"`
}

// SheetRequest is the JSON body for creating and updating sheets.
type SheetRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// SaveResult is returned by PUT /sheets/{id}.
type SaveResult struct {
	Sheet   *store.Sheet `json:"sheet"`
	Changed bool         `json:"changed"`
}

// ImportResult is returned by POST /import.
type ImportResult struct {
	Document *importer.Document `json:"document"`
	Sheet    *store.Sheet       `json:"sheet,omitempty"`
	Analysis *analysis.Result   `json:"analysis"`
}

var textContentTypes = []string{"text/plain", "application/octet-stream", ""}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "LyricScope API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /palette",
			"POST /analyze",
			"GET /sheets",
			"POST /sheets",
			"GET /sheets/{id}",
			"PUT /sheets/{id}",
			"PATCH /sheets/{id}",
			"DELETE /sheets/{id}",
			"GET /sheets/{id}/analysis",
			"GET /sheets/{id}/export",
			"POST /import",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	sheets, err := s.sheets(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stats := s.analyzer.Stats()
	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Sheets:  len(sheets),
		Clients: s.hub.ClientCount(),
		Cache: analysisCacheInfo{
			Size:     stats.Size,
			Hits:     stats.Hits,
			Misses:   stats.Misses,
			HitRatio: stats.HitRatio(),
		},
		SQLite: sqlite.GetInfo(),
	})
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	p := export.Palette()
	respondList(w, r, p, len(p))
}

// handleAnalyze accepts a raw text/plain buffer or an AnalyzeRequest. A
// format query parameter other than json returns the rendered export.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req AnalyzeRequest
	ct := r.Header.Get("Content-Type")
	switch {
	case server.ValidateContentType(ct, []string{"application/json"}):
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErr(w, r, errors.NewValidation("body", "invalid JSON: "+err.Error()))
			return
		}
	case server.ValidateContentType(ct, textContentTypes):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			respondErr(w, r, errors.NewValidation("body", "request body too large"))
			return
		}
		req.Text = string(data)
		req.Marker = r.URL.Query().Get("marker")
	default:
		respondErr(w, r, errors.NewUnsupported("content type", ct))
		return
	}

	res, err := s.analyze(r, req.Text, analysis.Options{Marker: req.Marker, Palette: req.Palette})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(res.Digest))
	s.writeResult(w, r, res, "")
}

// writeResult sends res in the envelope or, when the format query
// parameter asks for it, as a rendered export.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *analysis.Result, title string) {
	name := r.URL.Query().Get("format")
	if name == "" || name == string(export.FormatJSON) {
		respond(w, http.StatusOK, res)
		return
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, err := export.Render(res, format, export.Options{Title: title})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Write(out)
}

func (s *Server) analyze(r *http.Request, text string, opts analysis.Options) (*analysis.Result, error) {
	if err := s.checkLines(text); err != nil {
		return nil, err
	}
	before := s.analyzer.Stats().Hits
	res := s.analyzer.AnalyzeWith(text, opts)
	logging.AnalysisRun(r.Context(), digest.Short(res.Digest), res.Stats.Lines,
		res.Stats.RhymeGroups+res.Stats.NearRhymeGroups, s.analyzer.Stats().Hits > before)
	return res, nil
}

// checkLines rejects buffers longer than the configured line limit.
// Grouping compares every line with the rest of its section.
func (s *Server) checkLines(text string) error {
	if n := strings.Count(text, "\n") + 1; n > s.cfg.MaxLines {
		return errors.NewValidation("text", fmt.Sprintf("buffer has %d lines, limit is %d", n, s.cfg.MaxLines))
	}
	return nil
}

// paletteParam reads the optional palette query parameter.
func paletteParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("palette")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.NewValidation("palette", "palette must be a positive integer")
	}
	return n, nil
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sheets, err := s.sheets(r.Context())
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondList(w, r, sheets, len(sheets))

	case http.MethodPost:
		var req SheetRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			respondErr(w, r, err)
			return
		}
		sh, err := s.store.Create(r.Context(), deref(req.Title), deref(req.Body))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		s.notify(sheetEvent(EventSheetCreated, sh))
		w.Header().Set("Location", "/sheets/"+sh.ID)
		w.Header().Set("ETag", strconv.Quote(sh.Digest))
		respond(w, http.StatusCreated, sh)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleSheetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		sh, err := s.store.Get(ctx, id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if notModified(w, r, sh.Digest) {
			return
		}
		respond(w, http.StatusOK, sh)

	case http.MethodPut:
		var req SheetRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			respondErr(w, r, err)
			return
		}
		if req.Body == nil {
			respondErr(w, r, errors.NewValidation("body", "body is required"))
			return
		}
		sh, changed, err := s.store.Save(ctx, id, *req.Body)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if changed {
			s.notify(sheetEvent(EventSheetSaved, sh))
		}
		w.Header().Set("ETag", strconv.Quote(sh.Digest))
		respond(w, http.StatusOK, SaveResult{Sheet: sh, Changed: changed})

	case http.MethodPatch:
		var req SheetRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			respondErr(w, r, err)
			return
		}
		if req.Title == nil {
			respondErr(w, r, errors.NewValidation("title", "title is required"))
			return
		}
		sh, err := s.store.Rename(ctx, id, *req.Title)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		s.notify(sheetEvent(EventSheetRenamed, sh))
		respond(w, http.StatusOK, sh)

	case http.MethodDelete:
		if err := s.store.Delete(ctx, id); err != nil {
			respondErr(w, r, err)
			return
		}
		s.notify(Event{Type: EventSheetDeleted, SheetID: id})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, PUT, PATCH, DELETE")
	}
}

func (s *Server) handleSheetAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	palette, err := paletteParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	sh, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	q := r.URL.Query()
	opts := analysis.Options{Marker: q.Get("marker"), Palette: palette}
	if notModified(w, r, analysisTag(sh.Digest, opts, q.Get("format"))) {
		return
	}
	res, err := s.analyze(r, sh.Body, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.writeResult(w, r, res, sh.Title)
}

// handleSheetExport downloads a rendered sheet, optionally xz compressed.
func (s *Server) handleSheetExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	compress := q.Get("compress")
	if compress != "" && compress != "xz" {
		respondErr(w, r, errors.NewUnsupported("compression", compress))
		return
	}

	sh, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	res, err := s.analyze(r, sh.Body, analysis.Options{Marker: q.Get("marker")})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, err := export.Render(res, format, export.Options{Title: sh.Title})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	filename := validation.FilenameFromTitle(sh.Title) + format.Extension()
	if compress == "xz" {
		filename += ".xz"
		w.Header().Set("Content-Type", "application/x-xz")
	} else {
		w.Header().Set("Content-Type", format.ContentType())
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("ETag", strconv.Quote(sh.Digest+"-"+string(format)+compress))

	if compress != "xz" {
		w.Write(out)
		return
	}
	zw, err := export.Compress(w)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if _, err := zw.Write(out); err != nil {
		logging.ErrorContext(r.Context(), "export write failed", "error", err)
		return
	}
	if err := zw.Close(); err != nil {
		logging.ErrorContext(r.Context(), "export flush failed", "error", err)
	}
}

// handleImport converts an uploaded lyric file. With save=true the result
// is stored as a new sheet.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes+64<<10)
	if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil {
		respondErr(w, r, errors.NewValidation("file", "failed to parse multipart form or file too large"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondErr(w, r, errors.NewValidation("file", "no file uploaded"))
		return
	}
	defer file.Close()
	if err := validation.ValidateFilename(header.Filename); err != nil {
		respondErr(w, r, errors.NewValidation("file", err.Error()))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxBodyBytes+1))
	if err != nil {
		respondErr(w, r, errors.NewIO("read", header.Filename, err))
		return
	}
	if int64(len(data)) > s.cfg.MaxBodyBytes {
		respondErr(w, r, errors.NewValidation("file", "file too large"))
		return
	}
	if kind := validation.Sniff(data); !kind.IsText() {
		respondErr(w, r, errors.NewUnsupported("upload content", string(kind)))
		return
	}

	format, err := importer.ParseFormat(r.FormValue("format"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	doc, err := importer.ImportAs(format, header.Filename, data, importer.Options{Marker: s.analyzer.Options().Marker})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	res, err := s.analyze(r, doc.Body, analysis.Options{})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	result := ImportResult{Document: doc, Analysis: res}
	if save, _ := strconv.ParseBool(r.FormValue("save")); save {
		title := r.FormValue("title")
		if title == "" {
			title = doc.Title
		}
		sh, err := s.store.Create(r.Context(), title, doc.Body)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		s.notify(sheetEvent(EventSheetCreated, sh))
		result.Sheet = sh
	}

	status := http.StatusOK
	if result.Sheet != nil {
		status = http.StatusCreated
	}
	respond(w, status, result)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if !server.ValidateContentType(r.Header.Get("Content-Type"), []string{"application/json"}) {
		return errors.NewUnsupported("content type", r.Header.Get("Content-Type"))
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes+4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// analysisTag is the ETag of a sheet analysis: the body digest plus every
// option that changes the response.
func analysisTag(sum string, opts analysis.Options, format string) string {
	tag := sum
	if opts.Marker != "" {
		tag += "-m" + digest.Short(digest.String(opts.Marker))
	}
	if opts.Palette > 0 {
		tag += "-p" + strconv.Itoa(opts.Palette)
	}
	if format != "" {
		tag += "-" + format
	}
	return tag
}

// notModified answers a conditional GET whose ETag still matches.
func notModified(w http.ResponseWriter, r *http.Request, d string) bool {
	etag := strconv.Quote(d)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && (match == etag || match == "*") {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sheets lists stored sheets, newest first, from the listing snapshot
// when it is fresh.
func (s *Server) sheets(ctx context.Context) ([]store.Sheet, error) {
	if snap, ok := s.listing.Load(); ok {
		list := slices.Collect(maps.Values(snap))
		slices.SortFunc(list, func(a, b store.Sheet) int {
			if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})
		return list, nil
	}

	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]store.Sheet, len(list))
	for _, sh := range list {
		snap[sh.ID] = sh
	}
	s.listing.Store(snap)
	return list, nil
}

// notify drops the listing snapshot and tells WebSocket clients about a
// sheet change.
func (s *Server) notify(ev Event) {
	s.listing.Invalidate()
	s.hub.Broadcast(ev)
}
