// Package adminhttp serves the developer-facing admin surface described in
// spec.md §4.5: list/upload/download/rename/delete over plain HTTP, backed
// by the same engine state the CPU protocol talks to.
package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rainbow-espd/internal/vfs"
)

// Engine is the subset of protocol.Engine the admin surface needs. Kept as
// an interface so tests can exercise the handlers against a fake.
type Engine interface {
	ListFiles() []vfs.FileInfo
	DeleteFile(name string) bool
	RenameFile(from, to string) bool
	DownloadFile(name string) ([]byte, bool)
	UploadFile(name string, data []byte) bool
	LinkOpen() bool
}

// Server is the admin HTTP surface, grounded on the teacher's
// http.Server + http.ServeMux + context-shutdown pattern
// (internal/metrics.go's StartMetricsServer), generalized from one route
// to the six admin routes spec.md §4.5 names.
type Server struct {
	engine  Engine
	httpSrv *http.Server
}

func New(engine Engine, addr string) *Server {
	s := &Server{engine: engine}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/file/list", s.handleList)
	mux.HandleFunc("/api/file/delete", s.handleDelete)
	mux.HandleFunc("/api/file/rename", s.handleRename)
	mux.HandleFunc("/api/file/download", s.handleDownload)
	mux.HandleFunc("/api/file/upload", s.handleUpload)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/", s.handleDiagnostic)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the server's routing table, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Serve blocks until the server is shut down, matching the teacher's
// ListenAndServe-and-wrap-ErrServerClosed convention.
func (s *Server) Serve() error {
	err := s.httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and waits up to 2s for
// in-flight requests to finish, the same bound the teacher uses for its
// metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func writeConnClose(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
}

func sendGenericError(w http.ResponseWriter) {
	writeConnClose(w)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte("<html><body><h1>Error</h1></body></html>\n"))
}

func sendJSONSuccess(w http.ResponseWriter, ok bool) {
	writeConnClose(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	value := "false"
	if ok {
		value = "true"
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"success": value})
}

// jsonFileEntry mirrors the {id, name, size} objects spec.md §4.5 requires.
type jsonFileEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size string `json:"size"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	// The path query variable must be present but its value is ignored,
	// per spec.md §4.5.
	if _, ok := r.URL.Query()["path"]; !ok {
		sendGenericError(w)
		return
	}

	files := s.engine.ListFiles()
	entries := make([]jsonFileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, jsonFileEntry{
			ID:   fmt.Sprintf("%d", f.ID),
			Name: f.Name,
			Size: fmt.Sprintf("%d", f.Size),
		})
	}

	writeConnClose(w)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		sendGenericError(w)
		return
	}
	sendJSONSuccess(w, s.engine.DeleteFile(name))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("filename")
	to := r.URL.Query().Get("newFilename")
	if from == "" || to == "" {
		sendGenericError(w)
		return
	}
	sendJSONSuccess(w, s.engine.RenameFile(from, to))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		sendGenericError(w)
		return
	}
	data, ok := s.engine.DownloadFile(name)
	if !ok {
		sendGenericError(w)
		return
	}
	writeConnClose(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

// handleUpload parses the multipart/form-data body with the standard
// library's mime/multipart reader: the wire contract in spec.md §4.5 (scan
// for "path" and "file" fields) is what matters; SPEC_FULL.md §4.5 and
// DESIGN.md record the choice of parser.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		sendGenericError(w)
		return
	}

	var path string
	var fileData []byte
	var haveFile bool

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		switch part.FormName() {
		case "path":
			data, err := io.ReadAll(part)
			if err != nil {
				sendGenericError(w)
				return
			}
			path = string(data)
		case "file":
			data, err := io.ReadAll(part)
			if err != nil {
				sendGenericError(w)
				return
			}
			fileData = data
			haveFile = true
		}
		_ = part.Close()
	}

	if path == "" || !haveFile {
		sendGenericError(w)
		return
	}
	if !s.engine.UploadFile(path, fileData) {
		sendGenericError(w)
		return
	}

	writeConnClose(w)
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html><body><p>Upload success</p></body></html>\n"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeConnClose(w)
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(indexHTML))
}

const indexHTML = `<html><body>` +
	`<form action="/api/file/upload" method="post" enctype="multipart/form-data">` +
	`<input name="file" type="file"><br />` +
	`<input name="path" type="text" value="/USER/file10.bin"><br />` +
	`<button type="submit">Upload</button></form></body></html>`

// handleDiagnostic is the catch-all page the original firmware serves for
// any request it doesn't otherwise recognize, echoing method/uri/query/body
// and the link's status.
func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	body, _ := readBody(r)

	status := "bad"
	if s.engine.LinkOpen() {
		status = "good"
	}

	writeConnClose(w)
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w,
		"<html><body>\n"+
			"<h1>Hello!</h1>\n"+
			"<p>Server connection is %s</p>\n"+
			"<p>method: %s</p>\n"+
			"<p>uri: %s</p>\n"+
			"<p>query: %s</p>\n"+
			"<p>body:</p>\n"+
			"<pre>%s</pre>\n"+
			"</body></html>\n",
		status, r.Method, r.URL.Path, r.URL.RawQuery, body)
}

func readBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	return string(data), err
}
