// Package exif builds the EXIF blob that messaging clients read sticker pack
// information from.
//
// The blob is a fixed little-endian TIFF header with a single IFD entry
// (tag 0x5741, type UNDEFINED) whose value is a JSON object. Only the
// 4-byte count field of that entry changes between stickers.
package exif

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/pkg/errors"
)

// ErrEncoding is the only error Package returns.
var ErrEncoding = errors.New("exif: attributes cannot be encoded")

// HeaderSize is the length of the fixed template.
const HeaderSize = 22

// lengthOffset is where the little-endian payload length lives.
const lengthOffset = 14

var template = [HeaderSize]byte{
	0x49, 0x49, 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x41, 0x57, 0x07, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x16, 0x00, 0x00, 0x00,
}

// Template returns a copy of the fixed header.
func Template() [HeaderSize]byte {
	return template
}

// Package encodes attrs as canonical JSON and returns header ++ JSON with the
// payload length patched in at offset 14. The header is copied, never shared.
func Package(attrs map[string]string) ([]byte, error) {
	for k, v := range attrs {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return nil, errors.Wrapf(ErrEncoding, "invalid UTF-8 in attribute %q", k)
		}
	}
	if attrs == nil {
		attrs = map[string]string{}
	}

	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, errors.Wrap(ErrEncoding, err.Error())
	}
	payload, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, errors.Wrap(ErrEncoding, err.Error())
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrEncoding, "payload of %d bytes exceeds 32-bit length", len(payload))
	}

	out := make([]byte, HeaderSize+len(payload))
	copy(out, template[:])
	copy(out[HeaderSize:], payload)
	binary.LittleEndian.PutUint32(out[lengthOffset:lengthOffset+4], uint32(len(payload)))
	return out, nil
}

// StickerAttributes are the keys sticker-aware clients display.
type StickerAttributes struct {
	PackID    string
	PackName  string
	Publisher string
	Emojis    []string
}

// Map returns the attribute map, leaving out empty fields.
func (s StickerAttributes) Map() map[string]string {
	m := make(map[string]string, 4)
	if s.PackID != "" {
		m["sticker-pack-id"] = s.PackID
	}
	if s.PackName != "" {
		m["sticker-pack-name"] = s.PackName
	}
	if s.Publisher != "" {
		m["sticker-pack-publisher"] = s.Publisher
	}
	if len(s.Emojis) > 0 {
		m["emojis"] = strings.Join(s.Emojis, ",")
	}
	return m
}

// Package is shorthand for Package(s.Map()).
func (s StickerAttributes) Package() ([]byte, error) {
	return Package(s.Map())
}

// PayloadLength reads the length field back out of a packaged blob.
func PayloadLength(blob []byte) (uint32, bool) {
	if len(blob) < HeaderSize {
		return 0, false
	}
	return binary.LittleEndian.Uint32(blob[lengthOffset : lengthOffset+4]), true
}
