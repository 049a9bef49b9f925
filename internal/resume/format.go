package resume

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// Format is the declared content format of a resume document.
type Format string

// Supported formats.
const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatText    Format = "text"
)

// MIME types accepted for upload.
const (
	MIMEPDF    = "application/pdf"
	MIMEDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEMSWord = "application/msword"
	MIMEText   = "text/plain"
)

// MaxUploadBytes caps the size of an uploaded resume.
const MaxUploadBytes = 10 << 20

// AllowedMIME reports whether a resume of this content type may be uploaded.
func AllowedMIME(contentType string) bool {
	switch baseMIME(contentType) {
	case MIMEPDF, MIMEDOCX, MIMEMSWord, MIMEText:
		return true
	}
	return false
}

// FormatFromMIME maps a content type to a Format. Legacy .doc files are
// handed to the docx parser, which fails on them and yields empty text.
func FormatFromMIME(contentType string) Format {
	switch baseMIME(contentType) {
	case MIMEPDF:
		return FormatPDF
	case MIMEDOCX, MIMEMSWord:
		return FormatDOCX
	case MIMEText:
		return FormatText
	}
	return FormatUnknown
}

// FormatFromName infers the format from a file name or URL suffix.
// Anything that is not .docx, .doc or .txt is treated as PDF.
func FormatFromName(name string) Format {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".docx", ".doc":
		return FormatDOCX
	case ".txt":
		return FormatText
	}
	return FormatPDF
}

// MIMEForName returns the upload content type implied by a file name.
func MIMEForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return MIMEPDF
	case ".docx":
		return MIMEDOCX
	case ".doc":
		return MIMEMSWord
	case ".txt":
		return MIMEText
	}
	return "application/octet-stream"
}

func baseMIME(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
