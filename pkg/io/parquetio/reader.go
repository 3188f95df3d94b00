package parquetio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	parquet "github.com/segmentio/parquet-go"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// ReadAll loads a flat Parquet file into a Frame. Physical types map to
// frame kinds: DOUBLE/FLOAT to float, INT32/INT64 to int, BOOLEAN to bool
// and BYTE_ARRAY to string.
func ReadAll(path string) (*ef.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	r := parquet.NewReader(file)
	defer func() { _ = r.Close() }()

	var schema ef.Schema
	for _, colPath := range r.Schema().Columns() {
		name := strings.Join(colPath, ".")
		leaf, ok := r.Schema().Lookup(colPath...)
		if !ok {
			return nil, fmt.Errorf("parquet column %s: not found in schema", name)
		}
		schema.Columns = append(schema.Columns, ef.ColumnSchema{Name: name, Type: kindOf(leaf.Node.Type().Kind()), Nullable: true})
	}

	f := ef.NewFrame(schema)
	rows := make([]parquet.Row, 256)
	for {
		n, err := r.ReadRows(rows)
		for i := 0; i < n; i++ {
			f.AppendNullRow()
			if serr := setRow(f, f.Rows()-1, rows[i]); serr != nil {
				return nil, serr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parquet read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return f, nil
}

func kindOf(k parquet.Kind) ef.Kind {
	switch k {
	case parquet.Boolean:
		return ef.KindBool
	case parquet.Int32, parquet.Int64:
		return ef.KindInt
	case parquet.Float, parquet.Double:
		return ef.KindFloat
	default:
		return ef.KindString
	}
}

func setRow(f *ef.Frame, row int, values parquet.Row) error {
	cols := f.Schema().Columns
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		ci := v.Column()
		if ci < 0 || ci >= len(cols) {
			return fmt.Errorf("parquet value for unknown column %d", ci)
		}
		var cell any
		switch v.Kind() {
		case parquet.Boolean:
			cell = v.Boolean()
		case parquet.Int32:
			cell = int64(v.Int32())
		case parquet.Int64:
			cell = v.Int64()
		case parquet.Float:
			cell = float64(v.Float())
		case parquet.Double:
			cell = v.Double()
		default:
			cell = string(v.ByteArray())
		}
		if err := f.SetCell(row, cols[ci].Name, cell); err != nil {
			return err
		}
	}
	return nil
}
