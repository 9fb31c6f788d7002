package enums

import "fmt"

// FileFormat selects the export produced for a purchased product sheet.
type FileFormat string

const (
	FileFormatPDF  FileFormat = "pdf"
	FileFormatJSON FileFormat = "json"
	FileFormatZIP  FileFormat = "zip"
)

var validFileFormats = []FileFormat{
	FileFormatPDF,
	FileFormatJSON,
	FileFormatZIP,
}

// ContentType returns the MIME type served for the format.
func (f FileFormat) ContentType() string {
	switch f {
	case FileFormatPDF:
		return "application/pdf"
	case FileFormatJSON:
		return "application/json"
	case FileFormatZIP:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// IsValid reports whether the value is known.
func (f FileFormat) IsValid() bool {
	for _, candidate := range validFileFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFileFormat converts raw input into a FileFormat.
func ParseFileFormat(value string) (FileFormat, error) {
	for _, candidate := range validFileFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file format %q", value)
}
