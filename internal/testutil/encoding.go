package testutil

import (
	"bytes"
	"slices"
)

// CharsetSample is one text cell in a legacy encoding with its UTF-8 form.
type CharsetSample struct {
	Name    string
	Charset string // IANA name accepted by textutil.GetEncodingByName
	Encoded []byte
	UTF8    string
}

// CSV renders a two-column document whose text cells all hold the sample,
// encoded the same way, so a reader sees a consistently encoded file.
func (s CharsetSample) CSV(rows int) []byte {
	var b bytes.Buffer
	b.WriteString("id,text\n")
	for i := range rows {
		b.WriteString(Itoa(i + 1))
		b.WriteByte(',')
		b.Write(s.Encoded)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// charsetSamples are long enough for chardet to identify with high confidence.
var charsetSamples = []CharsetSample{
	{
		Name:    "Shift-JIS Japanese",
		Charset: "Shift_JIS",
		Encoded: []byte{
			0x93, 0xfa, 0x96, 0x7b, 0x8c, 0xea, 0x82, 0xcc, 0x83, 0x65, 0x83, 0x4c,
			0x83, 0x58, 0x83, 0x67, 0x83, 0x54, 0x83, 0x93, 0x83, 0x76, 0x83, 0x8b,
			0x82, 0xc5, 0x82, 0xb7, 0x81, 0x42, 0x82, 0xb1, 0x82, 0xea, 0x82, 0xcd,
			0x95, 0xb6, 0x8e, 0x9a, 0x89, 0xbb, 0x82, 0xaf, 0x82, 0xcc, 0x83, 0x65,
			0x83, 0x58, 0x83, 0x67, 0x82, 0xc9, 0x8e, 0x67, 0x97, 0x70, 0x82, 0xb3,
			0x82, 0xea, 0x82, 0xdc, 0x82, 0xb7, 0x81, 0x42,
		},
		UTF8: "日本語のテキストサンプルです。これは文字化けのテストに使用されます。",
	},
	{
		Name:    "GBK Simplified Chinese",
		Charset: "GBK",
		Encoded: []byte{
			0xd5, 0xe2, 0xca, 0xc7, 0xd2, 0xbb, 0xb8, 0xf6, 0xd6, 0xd0, 0xce, 0xc4,
			0xce, 0xc4, 0xb1, 0xbe, 0xca, 0xbe, 0xc0, 0xfd, 0xa3, 0xac, 0xd3, 0xc3,
			0xd3, 0xda, 0xb2, 0xe2, 0xca, 0xd4, 0xd7, 0xd6, 0xb7, 0xfb, 0xb1, 0xe0,
			0xc2, 0xeb, 0xbc, 0xec, 0xb2, 0xe2, 0xb9, 0xa6, 0xc4, 0xdc, 0xa1, 0xa3,
		},
		UTF8: "这是一个中文文本示例，用于测试字符编码检测功能。",
	},
	{
		Name:    "Big5 Traditional Chinese",
		Charset: "Big5",
		Encoded: []byte{
			0xb3, 0x6f, 0xac, 0x4f, 0xa4, 0x40, 0xad, 0xd3, 0xc1, 0x63, 0xc5, 0xe9,
			0xa4, 0xa4, 0xa4, 0xe5, 0xbd, 0x64, 0xa8, 0xd2, 0xa1, 0x41, 0xa5, 0xce,
			0xa9, 0xf3, 0xb4, 0xfa, 0xb8, 0xd5, 0xa6, 0x72, 0xa4, 0xb8, 0xbd, 0x73,
			0xbd, 0x58, 0xb0, 0xbb, 0xb4, 0xfa, 0xa1, 0x43,
		},
		UTF8: "這是一個繁體中文範例，用於測試字元編碼偵測。",
	},
	{
		Name:    "EUC-KR Korean",
		Charset: "EUC-KR",
		Encoded: []byte{
			0xc7, 0xd1, 0xb1, 0xdb, 0x20, 0xc5, 0xd8, 0xbd, 0xba, 0xc6, 0xae, 0x20,
			0xbb, 0xf9, 0xc7, 0xc3, 0xc0, 0xd4, 0xb4, 0xcf, 0xb4, 0xd9, 0x2e, 0x20,
			0xc0, 0xce, 0xc4, 0xda, 0xb5, 0xf9, 0x20, 0xb0, 0xa8, 0xc1, 0xf6, 0x20,
			0xc5, 0xd7, 0xbd, 0xba, 0xc6, 0xae, 0xbf, 0xeb, 0xc0, 0xd4, 0xb4, 0xcf,
			0xb4, 0xd9, 0x2e,
		},
		UTF8: "한글 텍스트 샘플입니다. 인코딩 감지 테스트용입니다.",
	},
	{
		Name:    "Windows-1252 punctuation",
		Charset: "windows-1252",
		Encoded: []byte("\x93Caf\xe9\x94 \x96 Rand\x92s \x80100 \x95 M\xfcnchen 25\xb0C"),
		UTF8:    "“Café” – Rand’s €100 • München 25°C",
	},
}

// CharsetSamples returns a fresh copy of the legacy charset samples, safe
// for mutation by individual tests.
func CharsetSamples() []CharsetSample {
	out := slices.Clone(charsetSamples)
	for i := range out {
		out[i].Encoded = bytes.Clone(out[i].Encoded)
	}
	return out
}
