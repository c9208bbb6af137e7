package provider

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRevalidateInterval is how long uploaded handles are trusted before
// DocumentSet asks the backend whether they still exist.
const DefaultRevalidateInterval = 30 * time.Minute

// DocumentHandle identifies a reference document uploaded to a backend.
type DocumentHandle struct {
	Name      string // file name, the cache key
	Path      string // local source
	RemoteID  string // backend resource name
	URI       string
	MediaType string
}

// Content returns the handle as a message block.
func (h DocumentHandle) Content() Content {
	return Content{Type: ContentTypeDocument, URI: h.URI, MediaType: h.MediaType, Name: h.Name}
}

// DocumentUploader is implemented by providers that keep uploaded files
// addressable across requests.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, path string) (DocumentHandle, error)
	// DocumentValid reports whether h can still be referenced. Uploaded
	// files expire on the backend side.
	DocumentValid(ctx context.Context, h DocumentHandle) bool
}

// DocumentSet holds the reference documents attached to every request.
//
// With a DocumentUploader, files are uploaded once and referenced by handle;
// stale handles are replaced by a fresh upload without surfacing an error.
// Without one, files are read from disk and inlined into the system prompt.
type DocumentSet struct {
	paths      []string
	uploader   DocumentUploader
	log        *zap.Logger
	revalidate time.Duration
	now        func() time.Time

	mu      sync.Mutex
	handles map[string]DocumentHandle
	checked time.Time
	inline  string
}

// NewDocumentSet prepares paths for p. Nothing is read or uploaded until Load.
func NewDocumentSet(p Provider, paths []string, log *zap.Logger) *DocumentSet {
	if log == nil {
		log = zap.NewNop()
	}
	d := &DocumentSet{
		paths:      append([]string(nil), paths...),
		log:        log.Named("docs"),
		revalidate: DefaultRevalidateInterval,
		now:        time.Now,
		handles:    make(map[string]DocumentHandle),
	}
	if u, ok := p.(DocumentUploader); ok {
		d.uploader = u
	}
	return d
}

// Uploads reports whether documents travel as backend handles.
func (d *DocumentSet) Uploads() bool { return d.uploader != nil }

// Load uploads (or reads) every document. Individual failures are logged and
// the document is skipped; the error reports how many failed.
func (d *DocumentSet) Load(ctx context.Context) error {
	if len(d.paths) == 0 {
		return nil
	}
	if d.uploader == nil {
		return d.loadInline()
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range d.paths {
		g.Go(func() error {
			h, err := d.uploader.UploadDocument(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Warn("reference document upload failed", zap.String("path", path), zap.Error(err))
				failed = append(failed, filepath.Base(path))
				return nil
			}
			d.mu.Lock()
			d.handles[h.Name] = h
			d.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.mu.Lock()
	d.checked = d.now()
	n := len(d.handles)
	d.mu.Unlock()
	d.log.Info("reference documents uploaded", zap.Int("count", n))

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("%d reference document(s) unavailable: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// Handles returns the current handles sorted by name. Once the revalidation
// interval has passed, every handle is checked and stale ones re-uploaded.
func (d *DocumentSet) Handles(ctx context.Context) []DocumentHandle {
	if d.uploader == nil {
		return nil
	}
	d.mu.Lock()
	due := d.now().Sub(d.checked) >= d.revalidate
	d.mu.Unlock()
	if due {
		d.Revalidate(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DocumentHandle, 0, len(d.handles))
	for _, h := range d.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Revalidate checks every handle now and re-uploads the ones the backend no
// longer knows, including documents whose first upload failed.
func (d *DocumentSet) Revalidate(ctx context.Context) {
	if d.uploader == nil {
		return
	}
	d.mu.Lock()
	current := make(map[string]DocumentHandle, len(d.handles))
	for k, v := range d.handles {
		current[k] = v
	}
	d.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range d.paths {
		name := filepath.Base(path)
		h, ok := current[name]
		g.Go(func() error {
			if ok && d.uploader.DocumentValid(gctx, h) {
				return nil
			}
			fresh, err := d.uploader.UploadDocument(gctx, path)
			if err != nil {
				d.log.Warn("reference document re-upload failed", zap.String("path", path), zap.Error(err))
				d.mu.Lock()
				delete(d.handles, name)
				d.mu.Unlock()
				return nil
			}
			d.log.Debug("reference document re-uploaded", zap.String("name", name))
			d.mu.Lock()
			d.handles[name] = fresh
			d.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.mu.Lock()
	d.checked = d.now()
	d.mu.Unlock()
}

// Contents returns one document block per valid handle.
func (d *DocumentSet) Contents(ctx context.Context) []Content {
	handles := d.Handles(ctx)
	out := make([]Content, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Content())
	}
	return out
}

// InlineText is the inlined reference material for backends without uploads.
func (d *DocumentSet) InlineText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inline
}

// SystemPrompt appends inlined reference material to base.
func (d *DocumentSet) SystemPrompt(base string) string {
	inline := d.InlineText()
	if inline == "" {
		return base
	}
	return base + "\n\n" + inline
}

func (d *DocumentSet) loadInline() error {
	var (
		sb     strings.Builder
		failed []string
	)
	for _, path := range d.paths {
		text, err := readDocumentText(path)
		if err != nil {
			d.log.Warn("reference document unreadable", zap.String("path", path), zap.Error(err))
			failed = append(failed, filepath.Base(path))
			continue
		}
		fmt.Fprintf(&sb, "<reference name=%q>\n%s\n</reference>\n", filepath.Base(path), strings.TrimSpace(text))
	}
	d.mu.Lock()
	d.inline = strings.TrimSpace(sb.String())
	d.mu.Unlock()
	if len(failed) > 0 {
		return fmt.Errorf("%d reference document(s) unavailable: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// readDocumentText loads a document for inlining; HTML becomes Markdown.
func readDocumentText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		md, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", path, err)
		}
		return md, nil
	case ".pdf":
		return "", fmt.Errorf("%s: PDF reference documents need a backend with file upload", path)
	}
	return string(data), nil
}

// documentMIMEType guesses the upload MIME type from the file extension.
func documentMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".html", ".htm":
		return "text/html"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
