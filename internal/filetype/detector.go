package filetype

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/apperr"
)

// Kind groups the upload categories the API accepts.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindWord
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindWord:
		return "word"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

var (
	pdfExts   = []string{".pdf"}
	wordExts  = []string{".doc", ".docx"}
	imageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}
)

// HasExtension reports whether name ends with one of kind's extensions,
// ignoring case.
func HasExtension(name string, kind Kind) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	var allowed []string
	switch kind {
	case KindPDF:
		allowed = pdfExts
	case KindWord:
		allowed = wordExts
	case KindImage:
		allowed = imageExts
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()
	ext := strings.ToLower(filepath.Ext(filePath))

	// Word containers are generic zip/OLE files at the byte level; trust the
	// extension only when the container type agrees.
	switch {
	case mtype.Is("application/zip") && ext == ".docx":
		mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		extension = ".docx"
	case (mtype.Is("application/x-ole-storage") || mtype.Is("application/x-cfb")) && ext == ".doc":
		mimeType = "application/msword"
		extension = ".doc"
	}
	if mimeType != mtype.String() {
		log.Debug().Str("original", mtype.String()).Str("override", mimeType).Msg("overriding container detection based on extension")
	}

	info := &FileTypeInfo{MIMEType: mimeType, Extension: extension}
	d.classify(info)
	log.Debug().Str("mime", info.MIMEType).Str("kind", info.Kind.String()).Str("file", filepath.Base(filePath)).Msg("detected file type")
	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo) {
	mimeType := info.MIMEType
	switch {
	case mimeType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		info.Kind = KindWord
		info.Description = "Microsoft Word document"
	case mimeType == "application/msword":
		info.Kind = KindWord
		info.Description = "Microsoft Word document (legacy)"
	case strings.HasPrefix(mimeType, "image/"):
		info.Kind = KindImage
		info.Description = "Image file"
	default:
		info.Kind = KindUnknown
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
}

// pdfHeaderWindow is how far into a file PDF readers look for the header.
const pdfHeaderWindow = 1024

// Verify checks that the bytes at path match the expected kind. PDF and image
// mismatches are rejected; Word documents are only logged because legacy
// exports are often mislabelled yet still convertible. A PDF whose header sits
// behind leading junk is accepted so the page-count fallbacks can read it.
func (d *Detector) Verify(path string, want Kind) error {
	info, err := d.Detect(path)
	if err != nil {
		return err
	}
	if info.Kind == want {
		return nil
	}
	switch want {
	case KindPDF:
		if ok, err := hasPDFHeader(path); err != nil {
			return err
		} else if ok {
			log.Warn().Str("mime", info.MIMEType).Str("file", filepath.Base(path)).Msg("PDF header is not at the start of the file")
			return nil
		}
		return &apperr.UnsupportedMediaError{Message: "File content is not a valid PDF", Detected: info.MIMEType}
	case KindImage:
		return &apperr.UnsupportedMediaError{Message: "File content is not a valid image", Detected: info.MIMEType}
	default:
		log.Warn().Str("mime", info.MIMEType).Str("want", want.String()).Msg("upload content does not match its extension")
		return nil
	}
}

// hasPDFHeader reports whether %PDF- occurs within the first
// pdfHeaderWindow bytes of path.
func hasPDFHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	head := make([]byte, pdfHeaderWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("failed to read file header: %w", err)
	}
	return bytes.Contains(head[:n], []byte("%PDF-")), nil
}

// MIMEFor returns the Content-Type to use for a file with the given extension.
func MIMEFor(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".zip":
		return "application/zip"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
