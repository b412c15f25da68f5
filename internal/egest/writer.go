package egest

import (
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/wesm/tabview/internal/table"
)

// Codec maps a configured compression name to a Parquet codec.
func Codec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4", "lz4_raw":
		return compress.Codecs.Lz4Raw, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unknown parquet compression %q", name)
}

// ArrowSchema converts a table schema to a nullable Arrow schema.
func ArrowSchema(fields []table.Field) *arrow.Schema {
	af := make([]arrow.Field, len(fields))
	for i, f := range fields {
		var dt arrow.DataType
		switch f.Type {
		case table.Int64:
			dt = arrow.PrimitiveTypes.Int64
		case table.Float64:
			dt = arrow.PrimitiveTypes.Float64
		case table.Bool:
			dt = arrow.FixedWidthTypes.Boolean
		default:
			dt = arrow.BinaryTypes.String
		}
		af[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(af, nil)
}

// parquetFile writes record batches of a fixed schema to one file.
type parquetFile struct {
	path    string
	fw      *pqarrow.FileWriter
	builder *array.RecordBuilder
	rows    int64
}

func createParquet(path string, schema *arrow.Schema, codec compress.Compression) (*parquetFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))
	fw, err := pqarrow.NewFileWriter(schema, f, props, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	return &parquetFile{
		path:    path,
		fw:      fw,
		builder: array.NewRecordBuilder(pool, schema),
	}, nil
}

// write appends t as one row group. t's columns must match the schema
// types in order.
func (p *parquetFile) write(t *table.Table) error {
	for i, c := range t.Columns() {
		var valid []bool
		if c.Nulls != nil {
			valid = make([]bool, len(c.Nulls))
			for j, isNull := range c.Nulls {
				valid[j] = !isNull
			}
		}
		switch b := p.builder.Field(i).(type) {
		case *array.Int64Builder:
			b.AppendValues(c.Ints, valid)
		case *array.Float64Builder:
			b.AppendValues(c.Floats, valid)
		case *array.BooleanBuilder:
			b.AppendValues(c.Bools, valid)
		case *array.StringBuilder:
			b.AppendValues(c.Strings, valid)
		default:
			return fmt.Errorf("column %s: unsupported builder %T", c.Name, b)
		}
	}
	rec := p.builder.NewRecord()
	defer rec.Release()
	if err := p.fw.Write(rec); err != nil {
		return fmt.Errorf("write record batch: %w", err)
	}
	p.rows += int64(t.Len())
	return nil
}

// close finalizes the footer. The underlying file is closed by the
// Parquet writer.
func (p *parquetFile) close() error {
	p.builder.Release()
	if err := p.fw.Close(); err != nil {
		return fmt.Errorf("close parquet %s: %w", p.path, err)
	}
	return nil
}
