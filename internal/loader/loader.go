// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loader reads input values for the command line tool from files
// and writes results back out.
package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	goavro "github.com/linkedin/goavro/v2"
	parquet "github.com/parquet-go/parquet-go"
	errors "gopkg.in/src-d/go-errors.v1"
	yaml "gopkg.in/yaml.v2"

	"github.com/exonware/go-xwquery/sql"
)

// Supported formats.
const (
	JSON    = "json"
	JSONL   = "jsonl"
	YAML    = "yaml"
	CSV     = "csv"
	Avro    = "avro"
	Parquet = "parquet"
)

var (
	// ErrUnsupportedFormat is returned for a format the loader cannot read
	// or write.
	ErrUnsupportedFormat = errors.NewKind("unsupported format %q (supported: %s)")

	// ErrLoad is returned when an input cannot be decoded.
	ErrLoad = errors.NewKind("cannot load %s: %s")
)

var extensions = map[string]string{
	".json":    JSON,
	".jsonl":   JSONL,
	".ndjson":  JSONL,
	".yaml":    YAML,
	".yml":     YAML,
	".csv":     CSV,
	".avro":    Avro,
	".parquet": Parquet,
}

// Formats returns the supported input formats.
func Formats() []string {
	return []string{JSON, JSONL, YAML, CSV, Avro, Parquet}
}

// FormatOf returns the format of a file name by its extension, or the
// empty string.
func FormatOf(filename string) string {
	return extensions[strings.ToLower(filepath.Ext(filename))]
}

// Load reads the file and returns its content as plain values: lists,
// string keyed mappings and scalars. An empty format is taken from the
// file extension.
func Load(filename, format string) (interface{}, error) {
	if format == "" {
		format = FormatOf(filename)
	}

	format = strings.ToLower(format)
	switch format {
	case Avro, Parquet:
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if format == Avro {
			return loadAvro(f)
		}

		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return loadParquet(f, info.Size())
	case JSON, JSONL, YAML, CSV:
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return Decode(f, format)
	default:
		return nil, unsupported(filepath.Ext(filename))
	}
}

// Decode reads a text format from r.
func Decode(r io.Reader, format string) (interface{}, error) {
	switch strings.ToLower(format) {
	case JSON:
		return decodeJSON(r)
	case JSONL:
		return decodeJSONL(r)
	case YAML:
		return decodeYAML(r)
	case CSV:
		return decodeCSV(r)
	case Avro:
		return loadAvro(r)
	default:
		return nil, unsupported(format)
	}
}

func unsupported(format string) error {
	return ErrUnsupportedFormat.New(format, strings.Join(Formats(), ", "))
}

func decodeJSON(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, ErrLoad.New(JSON, err)
	}
	return plain(v), nil
}

func decodeJSONL(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	records := []interface{}{}
	for {
		var v interface{}
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrLoad.New(JSONL, fmt.Sprintf("record %d: %s", len(records)+1, err))
		}
		records = append(records, plain(v))
	}
	return records, nil
}

func decodeYAML(r io.Reader) (interface{}, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, ErrLoad.New(YAML, err)
	}
	return plain(v), nil
}

func decodeCSV(r io.Reader) (interface{}, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []interface{}{}, nil
	}
	if err != nil {
		return nil, ErrLoad.New(CSV, fmt.Sprintf("header: %s", err))
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	records := []interface{}{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrLoad.New(CSV, err)
		}

		rec := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = cellValue(strings.TrimSpace(row[i]))
			} else {
				rec[col] = nil
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// cellValue infers the type of a CSV cell.
func cellValue(s string) interface{} {
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	return s
}

func loadAvro(r io.Reader) (interface{}, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, ErrLoad.New(Avro, err)
	}

	records := []interface{}{}
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, ErrLoad.New(Avro, err)
		}
		records = append(records, avroValue(datum))
	}

	if err := ocfr.Err(); err != nil {
		return nil, ErrLoad.New(Avro, err)
	}
	return records, nil
}

func avroValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		// Unions decode as a single entry mapping {"type": value}.
		if len(val) == 1 {
			for k, inner := range val {
				if isAvroTypeName(k) {
					return avroValue(inner)
				}
			}
		}

		m := make(map[string]interface{}, len(val))
		for k, inner := range val {
			m[k] = avroValue(inner)
		}
		return m
	case []interface{}:
		list := make([]interface{}, len(val))
		for i, inner := range val {
			list[i] = avroValue(inner)
		}
		return list
	case []byte:
		return string(val)
	default:
		return sql.Normalize(val)
	}
}

func isAvroTypeName(name string) bool {
	switch name {
	case "null", "boolean", "int", "long", "float", "double", "bytes", "string":
		return true
	}
	return false
}

func loadParquet(r io.ReaderAt, size int64) (interface{}, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, ErrLoad.New(Parquet, err)
	}

	paths := pf.Schema().Columns()
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
	}

	reader := parquet.NewReader(r)
	defer reader.Close()

	records := []interface{}{}
	rows := make([]parquet.Row, 64)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			rec := make(map[string]interface{}, len(names))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(names) {
					continue
				}
				rec[names[col]] = parquetValue(v)
			}
			records = append(records, rec)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrLoad.New(Parquet, err)
		}
	}
	return records, nil
}

func parquetValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// plain converts decoded JSON and YAML values into string keyed mappings
// and normalized numbers.
func plain(v interface{}) interface{} {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = plain(e)
		}
		return m
	case map[string]interface{}:
		for k, e := range v {
			v[k] = plain(e)
		}
		return v
	case []interface{}:
		for i, e := range v {
			v[i] = plain(e)
		}
		return v
	default:
		return sql.Normalize(v)
	}
}

// Encode writes v to w as JSON, JSON lines, YAML or CSV. CSV expects a
// list of mappings; its columns are the sorted union of their keys.
func Encode(w io.Writer, v interface{}, format string, pretty bool) error {
	switch strings.ToLower(format) {
	case JSON, "":
		enc := json.NewEncoder(w)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(v)
	case JSONL:
		enc := json.NewEncoder(w)
		for _, item := range sql.ExtractItems(v) {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	case YAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case CSV:
		return encodeCSV(w, v)
	default:
		return unsupported(format)
	}
}

// Save writes v to the file. An empty format is taken from the file
// extension.
func Save(filename string, v interface{}, format string, pretty bool) (err error) {
	if format == "" {
		format = FormatOf(filename)
		if format == "" {
			return unsupported(filepath.Ext(filename))
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return Encode(f, v, format, pretty)
}

func encodeCSV(w io.Writer, v interface{}) error {
	items := sql.ExtractItems(v)

	seen := map[string]bool{}
	var columns []string
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return ErrUnsupportedFormat.New(fmt.Sprintf("csv of %T", item), "a list of mappings")
		}
		for k := range m {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(columns); err != nil {
		return err
	}

	for _, item := range items {
		m := item.(map[string]interface{})
		row := make([]string, len(columns))
		for i, col := range columns {
			if val, ok := m[col]; ok && val != nil {
				row[i] = fmt.Sprint(val)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
