package chat

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mixlab-ai/mixlab/internal/provider"
)

// maxAttachmentBytes bounds a single attachment.
const maxAttachmentBytes = 20 << 20

// loadAttachment reads path and classifies it by extension, falling back to
// content sniffing.
func loadAttachment(path string) (*provider.Content, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("attach %s: is a directory", path)
	}
	if info.Size() > maxAttachmentBytes {
		return nil, fmt.Errorf("attach %s: %s exceeds the %s limit",
			path, humanize.Bytes(uint64(info.Size())), humanize.Bytes(maxAttachmentBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", path, err)
	}
	return &provider.Content{
		Type:      provider.ContentTypeAttachment,
		Data:      data,
		MediaType: attachmentMediaType(path, data),
		Name:      filepath.Base(path),
	}, nil
}

func attachmentMediaType(path string, data []byte) string {
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}
