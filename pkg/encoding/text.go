// Package encoding normalizes the text found in shader packs. Packs are
// authored on every platform and zipped by every tool, so file names and
// sources arrive in more encodings than the GLSL front ends accept.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ZipName returns a zip entry name as UTF-8. Entries without the UTF-8
// flag are CP437 per the zip format, though tools that ignore the flag
// often store UTF-8 anyway, so valid UTF-8 is kept as it is.
func ZipName(name string, nonUTF8 bool) string {
	if !nonUTF8 || utf8.ValidString(name) {
		return name
	}
	out, _, err := transform.String(charmap.CodePage437.NewDecoder(), name)
	if err != nil {
		return name
	}
	return out
}

// SourceText returns shader source as UTF-8 with LF line endings.
// UTF-16 sources are recognized by their byte order mark and a UTF-8 mark
// is dropped. Bytes that are not valid UTF-8 are read as Windows-1252, the
// usual origin of stray accented characters in comments.
func SourceText(data []byte) []byte {
	out := data
	if bytes.HasPrefix(out, bomUTF16LE) || bytes.HasPrefix(out, bomUTF16BE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if u, _, err := transform.Bytes(dec, out); err == nil {
			out = u
		}
	}
	out = bytes.TrimPrefix(out, bomUTF8)
	if !utf8.Valid(out) {
		if latin, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), out); err == nil {
			out = latin
		}
	}
	if bytes.IndexByte(out, '\r') >= 0 {
		out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
		out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	}
	return out
}
