package constants

import (
	"mime"
	"strings"
)

// Media types accepted by the extractor registry.
const (
	MediaTypeJPEG  = "image/jpeg"
	MediaTypeJPG   = "image/jpg"
	MediaTypePNG   = "image/png"
	MediaTypeTIFF  = "image/tiff"
	MediaTypeBMP   = "image/bmp"
	MediaTypeWEBP  = "image/webp"
	MediaTypeHEIC  = "image/heic"
	MediaTypeHEIF  = "image/heif"
	MediaTypePDF   = "application/pdf"
	MediaTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypeXLS   = "application/vnd.ms-excel"
	MediaTypeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeCSV   = "text/csv"
	MediaTypePlain = "text/plain"
)

// Format is the coarse family a media type belongs to.
type Format string

const (
	PDF         Format = "PDF"
	IMAGE       Format = "IMAGE"
	SPREADSHEET Format = "SPREADSHEET"
	CSV         Format = "CSV"
	DOCX        Format = "DOCX"
	TXT         Format = "TXT"
	UNKNOWN     Format = "UNKNOWN"
)

// MaxUploadBytes caps a single uploaded document.
const MaxUploadBytes = 20 << 20

var extToMediaType = map[string]string{
	"jpg":  MediaTypeJPEG,
	"jpeg": MediaTypeJPEG,
	"png":  MediaTypePNG,
	"tif":  MediaTypeTIFF,
	"tiff": MediaTypeTIFF,
	"bmp":  MediaTypeBMP,
	"webp": MediaTypeWEBP,
	"heic": MediaTypeHEIC,
	"heif": MediaTypeHEIF,
	"pdf":  MediaTypePDF,
	"xlsx": MediaTypeXLSX,
	"xlsm": MediaTypeXLSX,
	"xls":  MediaTypeXLS,
	"docx": MediaTypeDOCX,
	"csv":  MediaTypeCSV,
	"txt":  MediaTypePlain,
}

// AllowedExtensions holds the default file extensions picked up by directory ingestion.
var AllowedExtensions = func() map[string]struct{} {
	out := make(map[string]struct{}, len(extToMediaType))
	for ext := range extToMediaType {
		out[ext] = struct{}{}
	}
	return out
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt returns the media type registered for a file extension, or "".
func MediaTypeForExt(ext string) string {
	return extToMediaType[NormalizeExt(ext)]
}

// NormalizeMediaType strips parameters (e.g. "; charset=utf-8") and lowercases.
func NormalizeMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt, _, _ = strings.Cut(mediaType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsHEIC reports whether the media type needs conversion before OCR.
func IsHEIC(mediaType string) bool {
	mt := NormalizeMediaType(mediaType)
	return mt == MediaTypeHEIC || mt == MediaTypeHEIF
}

// MapMediaTypeToFormat classifies a media type.
func MapMediaTypeToFormat(mediaType string) Format {
	switch NormalizeMediaType(mediaType) {
	case MediaTypePDF:
		return PDF
	case MediaTypeJPEG, MediaTypeJPG, MediaTypePNG, MediaTypeTIFF, MediaTypeBMP, MediaTypeWEBP, MediaTypeHEIC, MediaTypeHEIF:
		return IMAGE
	case MediaTypeXLSX, MediaTypeXLS:
		return SPREADSHEET
	case MediaTypeCSV:
		return CSV
	case MediaTypeDOCX:
		return DOCX
	case MediaTypePlain:
		return TXT
	default:
		return UNKNOWN
	}
}
