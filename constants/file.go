package constants

import "strings"

// Source document formats the extraction selector knows how to handle.
const (
	PDF     = "PDF"
	IMAGE   = "IMAGE"
	TXT     = "TXT"
	TABULAR = "TABULAR"
)

// SourceFormats holds the allowed formats for a processing run.
var SourceFormats = []string{PDF, IMAGE, TXT, TABULAR}

// AllowedExtensions holds the default allowed file extensions for source documents.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"txt":  {},
	"csv":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to its source format.
// Unknown extensions map to "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	case "txt", "text", "md":
		return TXT
	case "csv", "xlsx":
		return TABULAR
	default:
		return ""
	}
}
