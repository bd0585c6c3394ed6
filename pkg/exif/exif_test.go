package exif

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
)

func TestPackageLayout(t *testing.T) {
	blob, err := Package(map[string]string{"sticker-pack-name": "X"})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	payload := []byte(`{"sticker-pack-name":"X"}`)
	if len(blob) != HeaderSize+len(payload) {
		t.Fatalf("length = %d, want %d", len(blob), HeaderSize+len(payload))
	}
	if got := binary.LittleEndian.Uint32(blob[14:18]); got != uint32(len(payload)) {
		t.Errorf("length field = %d, want %d", got, len(payload))
	}

	tmpl := Template()
	if !bytes.Equal(blob[:14], tmpl[:14]) {
		t.Errorf("bytes 0-13 changed: % x", blob[:14])
	}
	if !bytes.Equal(blob[18:22], tmpl[18:22]) {
		t.Errorf("bytes 18-21 changed: % x", blob[18:22])
	}
	if !bytes.Equal(blob[HeaderSize:], payload) {
		t.Errorf("payload = %s, want %s", blob[HeaderSize:], payload)
	}
}

func TestPackageDoesNotMutateTemplate(t *testing.T) {
	before := Template()
	if _, err := Package(map[string]string{"a": "some longer value to change the length"}); err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if Template() != before {
		t.Fatal("template was mutated")
	}
}

func TestPackageCanonicalKeyOrder(t *testing.T) {
	blob, err := StickerAttributes{
		PackName:  "User: ana",
		Publisher: "Owner: bot",
		PackID:    "1234",
	}.Package()
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	want := `{"sticker-pack-id":"1234","sticker-pack-name":"User: ana","sticker-pack-publisher":"Owner: bot"}`
	if got := string(blob[HeaderSize:]); got != want {
		t.Errorf("payload = %s\nwant      %s", got, want)
	}
	n, ok := PayloadLength(blob)
	if !ok || int(n) != len(want) {
		t.Errorf("PayloadLength = %d,%v want %d", n, ok, len(want))
	}
}

func TestPackageMultibyteLength(t *testing.T) {
	blob, err := Package(map[string]string{"emojis": "😀,🎉"})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(blob[HeaderSize:], &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	n, _ := PayloadLength(blob)
	if int(n) != len(blob)-HeaderSize {
		t.Errorf("length field counts %d bytes, payload has %d", n, len(blob)-HeaderSize)
	}
}

func TestPackageRejectsInvalidUTF8(t *testing.T) {
	_, err := Package(map[string]string{"sticker-pack-name": "bad\xff"})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestPackageEmpty(t *testing.T) {
	blob, err := Package(nil)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if string(blob[HeaderSize:]) != "{}" {
		t.Errorf("payload = %q, want {}", blob[HeaderSize:])
	}
}

func TestStickerAttributesMapOmitsEmpty(t *testing.T) {
	m := StickerAttributes{PackName: "p", Emojis: []string{"a", "b"}}.Map()
	if len(m) != 2 {
		t.Fatalf("expected 2 keys, got %v", m)
	}
	if m["emojis"] != "a,b" {
		t.Errorf("emojis = %q", m["emojis"])
	}
}
