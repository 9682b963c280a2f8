package entity

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

// ReceiptFile is a registered source document. ContentHash is the raw
// sha256 digest and is unique across files.
type ReceiptFile struct {
	ID          uuid.UUID `json:"id"`
	SourcePath  string    `json:"source_path"`
	ContentHash []byte    `json:"-"`
	Filename    string    `json:"filename"`
	FileExt     string    `json:"file_ext"`
	FileSize    int       `json:"file_size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// HashHex is the lowercase hex form of ContentHash.
func (f *ReceiptFile) HashHex() string {
	return hex.EncodeToString(f.ContentHash)
}

// Format is constants.PDF or constants.IMAGE, or "" for extensions the OCR
// collaborator cannot read.
func (f *ReceiptFile) Format() string {
	return constants.MapExtToFormat(f.FileExt)
}
