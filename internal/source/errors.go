package source

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wesm/tabview/internal/query"
)

// Sentinel errors for the data layer. Use errors.Is to classify.
var (
	// ErrUnsupportedSource is returned for extensions or storage
	// combinations that cannot be opened or saved.
	ErrUnsupportedSource = eris.New("unsupported source")
	// ErrSourceNotFound is returned for missing files and empty globs.
	ErrSourceNotFound = eris.New("source not found")
	// ErrSchemaMismatch is returned when files opened as one set differ.
	ErrSchemaMismatch = eris.New("schema mismatch")
	// ErrPartialData is returned for operations that need the complete
	// row set while only a prefix is resident.
	ErrPartialData = eris.New("incomplete source")
	// ErrQuery wraps engine failures.
	ErrQuery = eris.New("query failed")
	// ErrNeedsEgest is returned by Save on a streaming source; the
	// original file must be converted instead of the resident prefix.
	ErrNeedsEgest = eris.New("streaming source must be converted from its origin")
)

// PartialError reports an operation refused on a streaming source.
type PartialError struct {
	Op string
	// Loading is set while the background reader is still running.
	Loading bool
	// Truncated is set when reading stopped at the memory budget.
	Truncated bool
}

func (e *PartialError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	switch {
	case e.Loading:
		sb.WriteString("source is still loading, wait for ingestion to finish")
	case e.Truncated:
		sb.WriteString("source was truncated at the memory budget")
	default:
		sb.WriteString(ErrPartialData.Error())
	}
	return sb.String()
}

// Is matches ErrPartialData.
func (e *PartialError) Is(target error) bool {
	return target == ErrPartialData
}

// queryErr classifies an engine failure as ErrQuery, adding a hint for
// files that are not valid UTF-8.
func queryErr(op string, err error) error {
	return eris.Wrapf(ErrQuery, "%s: %v", op, query.HintEncoding(err))
}
