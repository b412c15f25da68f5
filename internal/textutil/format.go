package textutil

import (
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Commify formats n with thousands separators ("1,234,567").
func Commify(n int64) string {
	return printer.Sprintf("%d", n)
}

// Bytes formats a byte count for status messages ("1.2 GB").
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
