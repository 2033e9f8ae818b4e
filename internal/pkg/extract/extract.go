// Package extract turns uploaded files into text or FAQ records.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for a file extension no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// RequiredFAQColumns are the header cells every FAQ sheet must carry.
var RequiredFAQColumns = []string{"question", "answer"}

// MissingColumnsError reports a FAQ sheet whose header lacks required columns.
type MissingColumnsError struct {
	Required []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("file must contain columns: %s", strings.Join(e.Required, ", "))
}

var (
	documentExts = map[string]bool{"pdf": true, "doc": true, "docx": true}
	faqExts      = map[string]bool{"csv": true, "xls": true, "xlsx": true}
)

// Ext returns the lower-cased extension of name without the leading dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// IsDocument reports whether name has a PDF or Word extension.
func IsDocument(name string) bool {
	return documentExts[Ext(name)]
}

// IsFAQ reports whether name has a CSV or Excel extension.
func IsFAQ(name string) bool {
	return faqExts[Ext(name)]
}
