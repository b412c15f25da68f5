// Package testutil provides test helpers for tabview tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, Cells, etc.)
//   - fs_helpers.go: fixture files and output checks (WriteFile, AssertFileContent, MustNotExist)
//   - archive_helpers.go: compressed sources (WriteGzip, WriteZstd, WriteLZ4) and CSVRows
//   - encoding.go: legacy charset samples (CharsetSamples)
package testutil
