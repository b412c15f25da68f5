// Package textutil provides charset repair for delimited text input and
// small formatting helpers shared by the status line and progress reports.
package textutil

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SampleSize is how many leading bytes are inspected to pick a charset.
const SampleSize = 64 << 10

// fallbacks are tried in order when detection is inconclusive. Single-byte
// Western code pages first, since exported spreadsheets are usually
// Windows-1252, then multi-byte Asian encodings.
var fallbacks = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
	charmap.ISO8859_15,
	japanese.ShiftJIS,
	japanese.EUCJP,
	korean.EUCKR,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
}

// DetectCharset picks a decoder for sample. It returns (nil, "UTF-8") when
// the sample is already valid UTF-8. A trailing partial rune at the end of
// the sample is tolerated.
func DetectCharset(sample []byte) (encoding.Encoding, string) {
	if validPrefix(sample) {
		return nil, "UTF-8"
	}

	minConfidence := 30
	if len(sample) > 50 {
		minConfidence = 50
	}
	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(sample); err == nil && result.Confidence >= minConfidence {
		if enc := GetEncodingByName(result.Charset); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(sample); err == nil && utf8.Valid(decoded) {
				return enc, result.Charset
			}
		}
	}

	for _, enc := range fallbacks {
		if decoded, err := enc.NewDecoder().Bytes(sample); err == nil && validPrefix(decoded) {
			return enc, encodingName(enc)
		}
	}
	return nil, "UTF-8"
}

// validPrefix is utf8.Valid but allows the final rune to be cut off.
func validPrefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) && !utf8.FullRune(b[len(b)-cut:]) {
			return true
		}
	}
	return false
}

// NewUTF8Reader peeks at the head of r and, when the content is in a legacy
// charset, returns a reader that transcodes it to UTF-8. A UTF-8 byte order
// mark is stripped. The detected charset name is returned for diagnostics.
func NewUTF8Reader(r io.Reader) (io.Reader, string) {
	br := bufio.NewReaderSize(r, SampleSize)
	sample, _ := br.Peek(SampleSize)
	enc, name := DetectCharset(sample)
	if enc == nil {
		return transform.NewReader(br, unicode.BOMOverride(transform.Nop)), name
	}
	return transform.NewReader(br, enc.NewDecoder()), name
}

// EnsureUTF8 ensures a single field is valid UTF-8, replacing any bytes
// that still do not decode.
func EnsureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return SanitizeUTF8(s)
}

// SanitizeUTF8 replaces invalid UTF-8 bytes with replacement character.
func SanitizeUTF8(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('\ufffd')
			i++
		} else {
			sb.WriteRune(r)
			i += size
		}
	}
	return sb.String()
}

// GetEncodingByName returns an encoding for the given IANA charset name.
func GetEncodingByName(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS
	case "euc-jp", "eucjp":
		return japanese.EUCJP
	case "euc-kr", "euckr":
		return korean.EUCKR
	case "gb2312", "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5", "big-5":
		return traditionalchinese.Big5
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	default:
		return nil
	}
}

func encodingName(enc encoding.Encoding) string {
	if cm, ok := enc.(*charmap.Charmap); ok {
		return cm.String()
	}
	switch enc {
	case japanese.ShiftJIS:
		return "Shift_JIS"
	case japanese.EUCJP:
		return "EUC-JP"
	case korean.EUCKR:
		return "EUC-KR"
	case simplifiedchinese.GBK:
		return "GBK"
	case traditionalchinese.Big5:
		return "Big5"
	}
	return "unknown"
}

// FirstLine returns the first line of a string.
// Useful for extracting clean error messages from multi-line outputs.
// Leading newlines are trimmed before extracting the first line.
func FirstLine(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
