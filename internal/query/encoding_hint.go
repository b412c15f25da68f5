package query

import (
	"fmt"
	"strings"
)

// Error texts DuckDB emits when a scanned file holds bytes that are not
// valid UTF-8.
const (
	parquetEncodingError = "Invalid string encoding found in Parquet file"
	csvEncodingError     = "Invalid unicode (byte sequence mismatch)"
)

// IsEncodingError reports whether err is a DuckDB invalid-UTF-8 error.
func IsEncodingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, parquetEncodingError) || strings.Contains(msg, csvEncodingError)
}

// HintEncoding wraps an encoding error with a hint on how to read the
// file. Other errors, and nil, are returned unchanged.
func HintEncoding(err error) error {
	if !IsEncodingError(err) {
		return err
	}
	if strings.Contains(err.Error(), csvEncodingError) {
		return fmt.Errorf("%w\nHint: the file is not UTF-8; raise [view] csv_resident_max_bytes so it is transcoded on read, or run 'tabview convert' to write a UTF-8 Parquet copy", err)
	}
	return fmt.Errorf("%w\nHint: the Parquet file holds strings that are not valid UTF-8; rewrite it with UTF-8 text", err)
}
