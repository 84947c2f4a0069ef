package indexer

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	sniffLen       = 512
	folderMimeType = "inode/directory"
)

// detectMimeType prefers the extension mapping and falls back to content
// sniffing.
func detectMimeType(path string, head []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return stripParams(t)
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return stripParams(http.DetectContentType(head))
}

func stripParams(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

var textualTypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/x-sh":       true,
	"application/yaml":       true,
	"application/toml":       true,
}

func isTextual(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || textualTypes[mimeType]
}

// extractText returns at most maxBytes of text from the head of a file,
// cut on a rune boundary. UTF-8 is taken as is, a byte-order mark selects
// UTF-8 or UTF-16, and anything else is read as Windows-1252, the usual
// encoding of legacy desktop text files.
func extractText(data []byte, maxBytes int) string {
	truncated := len(data) > maxBytes
	if truncated {
		data = data[:maxBytes]
	}

	var text string
	switch {
	case hasBOM(data):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return ""
		}
		// A code unit split by the read limit decodes to U+FFFD.
		text = strings.TrimRight(string(out), "\uFFFD")
	case utf8.Valid(data):
		text = string(data)
	case truncated && utf8.Valid(trimPartialRune(data)):
		text = string(trimPartialRune(data))
	default:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return ""
		}
		text = string(out)
	}

	if len(text) > maxBytes {
		text = string(trimPartialRune([]byte(text[:maxBytes])))
	}
	return strings.TrimSpace(text)
}

var boms = [][]byte{{0xEF, 0xBB, 0xBF}, {0xFF, 0xFE}, {0xFE, 0xFF}}

func hasBOM(data []byte) bool {
	for _, bom := range boms {
		if bytes.HasPrefix(data, bom) {
			return true
		}
	}
	return false
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of data.
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(data) > 0 && !utf8.Valid(data); i++ {
		data = data[:len(data)-1]
	}
	return data
}
