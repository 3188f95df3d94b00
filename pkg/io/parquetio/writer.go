package parquetio

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	pw "github.com/xitongsys/parquet-go/writer"
	local "github.com/xitongsys/parquet-go-source/local"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Options control how a Frame is encoded.
type Options struct {
	// Compression is one of snappy (default), gzip, zstd or none.
	Compression string
	// Parallelism is the number of goroutines the encoder may use (default 4).
	Parallelism int64
}

func (o Options) codec() (parquet.CompressionCodec, error) {
	switch strings.ToLower(o.Compression) {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "zstd":
		return parquet.CompressionCodec_ZSTD, nil
	case "none", "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("unsupported parquet compression %q", o.Compression)
}

func parquetSchemaJSON(s ef.Schema) string {
	// Build a minimal JSON schema for parquet-go JSONWriter
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case ef.KindFloat:
			tag += "DOUBLE"
		case ef.KindInt:
			tag += "INT64"
		case ef.KindBool:
			tag += "BOOLEAN"
		default:
			tag += "BYTE_ARRAY, convertedtype=UTF8"
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

// WriteAll writes a Frame to a Parquet file. Times are written as RFC 3339
// strings. NaN and infinite floats have no JSON form and are written as
// nulls.
func WriteAll(path string, f *ef.Frame, opt Options) (err error) {
	codec, err := opt.codec()
	if err != nil {
		return err
	}
	np := opt.Parallelism
	if np <= 0 {
		np = 4
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	writer, err := pw.NewJSONWriter(parquetSchemaJSON(f.Schema()), fw, np)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer init: %w", err)
	}
	writer.CompressionType = codec
	defer func() {
		if serr := writer.WriteStop(); serr != nil && err == nil {
			err = fmt.Errorf("parquet finalize: %w", serr)
		}
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, f.Cols())
		for _, cs := range f.Schema().Columns {
			if v := encodeValue(f.Value(r, cs.Name)); v != nil {
				rec[cs.Name] = v
			}
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("parquet encode row %d: %w", r, err)
		}
		if err := writer.Write(string(b)); err != nil {
			return fmt.Errorf("parquet write row %d: %w", r, err)
		}
	}
	return nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return v
}
