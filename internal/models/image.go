package models

import (
	"bytes"
	"encoding/base64"
)

// ImageOrigin records where an image buffer came from.
type ImageOrigin string

const (
	OriginCamera ImageOrigin = "camera"
	OriginImport ImageOrigin = "import"
)

// ImageBuffer is the single normalized image shape handed to recognition,
// whatever its origin.
type ImageBuffer struct {
	Data     []byte      `json:"-"`
	MIMEType string      `json:"mimeType"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Origin   ImageOrigin `json:"origin"`
}

// Empty reports whether the buffer holds no image data.
func (b ImageBuffer) Empty() bool {
	return len(b.Data) == 0
}

// Clone returns a copy that shares no memory with b.
func (b ImageBuffer) Clone() ImageBuffer {
	b.Data = bytes.Clone(b.Data)
	return b
}

// DataURL renders the buffer as a data: URL for clients.
func (b ImageBuffer) DataURL() string {
	if b.Empty() {
		return ""
	}
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}
