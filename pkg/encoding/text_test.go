package encoding

import (
	"testing"
)

func TestZipName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		nonUTF8 bool
		want    string
	}{
		{"flagged utf8", "shaders/final.fsh", false, "shaders/final.fsh"},
		{"cp437", "shaders/\x82clair.fsh", true, "shaders/éclair.fsh"},
		{"utf8 without flag", "shaders/éclair.fsh", true, "shaders/éclair.fsh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ZipName(tt.in, tt.nonUTF8); got != tt.want {
				t.Errorf("ZipName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSourceText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("void main() {}\n"), "void main() {}\n"},
		{"utf8 bom", []byte("\xEF\xBB\xBFvoid main() {}\n"), "void main() {}\n"},
		{"crlf", []byte("#version 120\r\nvoid main() {}\r\n"), "#version 120\nvoid main() {}\n"},
		{"bare cr", []byte("a\rb"), "a\nb"},
		{"utf16le", []byte{0xFF, 0xFE, 'v', 0, 'e', 0, 'c', 0, '3', 0}, "vec3"},
		{"latin1 comment", []byte("// r\xE9glage\nfloat x;\n"), "// réglage\nfloat x;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SourceText(tt.in)); got != tt.want {
				t.Errorf("SourceText() = %q, want %q", got, tt.want)
			}
		})
	}
}
