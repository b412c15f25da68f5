package textutil

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"github.com/wesm/tabview/internal/testutil"
)

func TestEnsureUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ASCII", "Hello, World!", "Hello, World!"},
		{"UTF-8 Japanese", "こんにちは", "こんにちは"},
		{"empty", "", ""},
		{"stray byte", "ab\xffc", "ab\uFFFDc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureUTF8(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			testutil.AssertValidUTF8(t, got)
		})
	}
}

func TestDetectCharset_UTF8(t *testing.T) {
	enc, name := DetectCharset([]byte("id,name\n1,Zoë\n"))
	if enc != nil || name != "UTF-8" {
		t.Errorf("got %v %q, want nil UTF-8", enc, name)
	}
	// A sample that ends mid-rune is still UTF-8.
	cut := []byte("id,name\n1,Zoë")
	if enc, _ := DetectCharset(cut[:len(cut)-1]); enc != nil {
		t.Errorf("truncated sample detected as %v", enc)
	}
}

func TestNewUTF8Reader_Latin1(t *testing.T) {
	src := "city,country\nMünchen,Deutschland\nZürich,Schweiz\nKöln,Deutschland\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(src)
	testutil.MustNoErr(t, err, "encode")

	r, name := NewUTF8Reader(strings.NewReader(encoded))
	got, err := io.ReadAll(r)
	testutil.MustNoErr(t, err, "read")
	if string(got) != src {
		t.Errorf("decoded %q (charset %s), want %q", got, name, src)
	}
}

func TestNewUTF8Reader_ShiftJIS(t *testing.T) {
	src := strings.Repeat("名前,都市\n山田,東京\n", 20)
	encoded, err := japanese.ShiftJIS.NewEncoder().String(src)
	testutil.MustNoErr(t, err, "encode")

	r, _ := NewUTF8Reader(strings.NewReader(encoded))
	got, err := io.ReadAll(r)
	testutil.MustNoErr(t, err, "read")
	testutil.AssertValidUTF8(t, string(got))
}

func TestNewUTF8Reader_StripsBOM(t *testing.T) {
	r, _ := NewUTF8Reader(strings.NewReader("\uFEFFa,b\n1,2\n"))
	got, err := io.ReadAll(r)
	testutil.MustNoErr(t, err, "read")
	if string(got) != "a,b\n1,2\n" {
		t.Errorf("got %q", got)
	}
}

func TestGetEncodingByName(t *testing.T) {
	for _, name := range []string{"windows-1252", "ISO-8859-1", "Shift_JIS", "GB18030", "Big5"} {
		if GetEncodingByName(name) == nil {
			t.Errorf("%s: no encoding", name)
		}
	}
	if GetEncodingByName("x-unknown") != nil {
		t.Error("unknown charset should return nil")
	}
}

func TestCommify(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1234567: "1,234,567",
		-4200:   "-4,200",
	}
	for n, want := range tests {
		if got := Commify(n); got != want {
			t.Errorf("Commify(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\nBinder Error: x\nLINE 1: ..."); got != "Binder Error: x" {
		t.Errorf("FirstLine = %q", got)
	}
}

func TestGetEncodingByName_DecodesSamples(t *testing.T) {
	for _, s := range testutil.CharsetSamples() {
		t.Run(s.Name, func(t *testing.T) {
			enc := GetEncodingByName(s.Charset)
			if enc == nil {
				t.Fatalf("GetEncodingByName(%q) returned nil", s.Charset)
			}
			decoded, err := enc.NewDecoder().Bytes(s.Encoded)
			testutil.MustNoErr(t, err, "decode")
			if string(decoded) != s.UTF8 {
				t.Errorf("decoded %q, want %q", decoded, s.UTF8)
			}
		})
	}
}

func TestNewUTF8Reader_LegacySamples(t *testing.T) {
	// chardet may confuse the CJK multibyte charsets with each other, so
	// only a clean decode is asserted.
	for _, s := range testutil.CharsetSamples() {
		t.Run(s.Name, func(t *testing.T) {
			r, name := NewUTF8Reader(bytes.NewReader(s.CSV(20)))
			got, err := io.ReadAll(r)
			testutil.MustNoErr(t, err, "read")
			testutil.AssertValidUTF8(t, string(got))
			if name == "UTF-8" {
				t.Errorf("%s sample detected as UTF-8", s.Name)
			}
			if !strings.HasPrefix(string(got), "id,text\n1,") {
				t.Errorf("header mangled: %q", FirstLine(string(got)))
			}
		})
	}
}
