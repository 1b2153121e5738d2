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

package loader

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goavro "github.com/linkedin/goavro/v2"
	parquet "github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		format   string
		input    string
		expected interface{}
	}{
		{
			"json",
			JSON,
			`{"users": [{"name": "Ann", "age": 31, "score": 1.5}]}`,
			map[string]interface{}{
				"users": []interface{}{
					map[string]interface{}{"name": "Ann", "age": int64(31), "score": 1.5},
				},
			},
		},
		{
			"jsonl",
			JSONL,
			"{\"a\": 1}\n{\"a\": 2}\n",
			[]interface{}{
				map[string]interface{}{"a": int64(1)},
				map[string]interface{}{"a": int64(2)},
			},
		},
		{
			"yaml",
			YAML,
			"users:\n  - name: Ann\n    age: 31\n",
			map[string]interface{}{
				"users": []interface{}{
					map[string]interface{}{"name": "Ann", "age": int64(31)},
				},
			},
		},
		{
			"csv",
			CSV,
			"name, age, active, score\nAnn, 31, true, 1.5\nBob,,false\n",
			[]interface{}{
				map[string]interface{}{"name": "Ann", "age": int64(31), "active": true, "score": 1.5},
				map[string]interface{}{"name": "Bob", "age": nil, "active": false, "score": nil},
			},
		},
		{
			"empty csv",
			CSV,
			"",
			[]interface{}{},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			v, err := Decode(strings.NewReader(tt.input), tt.format)
			require.NoError(err)
			require.Equal(tt.expected, v)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	require := require.New(t)

	_, err := Decode(strings.NewReader("{"), JSON)
	require.True(ErrLoad.Is(err))

	_, err = Decode(strings.NewReader("{}\n{"), JSONL)
	require.True(ErrLoad.Is(err))

	_, err = Decode(strings.NewReader("x"), "xml")
	require.True(ErrUnsupportedFormat.Is(err))
}

func TestFormatOf(t *testing.T) {
	require := require.New(t)
	require.Equal(JSON, FormatOf("data.JSON"))
	require.Equal(YAML, FormatOf("conf.yml"))
	require.Equal(Parquet, FormatOf("/tmp/x.parquet"))
	require.Equal("", FormatOf("x.txt"))
}

func TestLoadAvro(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W: &buf,
		Schema: `{"type": "record", "name": "user", "fields": [
			{"name": "name", "type": "string"},
			{"name": "age", "type": "int"},
			{"name": "city", "type": ["null", "string"]}
		]}`,
	})
	require.NoError(err)
	require.NoError(w.Append([]map[string]interface{}{
		{"name": "Ann", "age": int32(31), "city": goavro.Union("string", "NYC")},
		{"name": "Bob", "age": int32(25), "city": nil},
	}))

	file := filepath.Join(tempDir(t), "users.avro")
	require.NoError(ioutil.WriteFile(file, buf.Bytes(), 0644))

	v, err := Load(file, "")
	require.NoError(err)
	require.Equal([]interface{}{
		map[string]interface{}{"name": "Ann", "age": int64(31), "city": "NYC"},
		map[string]interface{}{"name": "Bob", "age": int64(25), "city": nil},
	}, v)
}

type parquetUser struct {
	Name string `parquet:"name"`
	Age  int32  `parquet:"age"`
}

func TestLoadParquet(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(tempDir(t), "users.parquet")
	f, err := os.Create(file)
	require.NoError(err)

	w := parquet.NewWriter(f)
	require.NoError(w.Write(parquetUser{"Ann", 31}))
	require.NoError(w.Write(parquetUser{"Bob", 25}))
	require.NoError(w.Close())
	require.NoError(f.Close())

	v, err := Load(file, "")
	require.NoError(err)
	require.Equal([]interface{}{
		map[string]interface{}{"name": "Ann", "age": int64(31)},
		map[string]interface{}{"name": "Bob", "age": int64(25)},
	}, v)
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("data.txt", "")
	require.True(t, ErrUnsupportedFormat.Is(err))
}

func TestEncode(t *testing.T) {
	items := []interface{}{
		map[string]interface{}{"name": "Ann", "age": int64(31)},
		map[string]interface{}{"name": "Bob"},
	}

	t.Run("csv", func(t *testing.T) {
		require := require.New(t)
		var buf bytes.Buffer
		require.NoError(Encode(&buf, items, CSV, false))
		require.Equal("age,name\n31,Ann\n,Bob\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		require := require.New(t)
		var buf bytes.Buffer
		require.NoError(Encode(&buf, items, JSON, false))
		require.Equal(`[{"age":31,"name":"Ann"},{"name":"Bob"}]`+"\n", buf.String())
	})

	t.Run("yaml round trip", func(t *testing.T) {
		require := require.New(t)
		var buf bytes.Buffer
		require.NoError(Encode(&buf, items, YAML, false))

		v, err := Decode(&buf, YAML)
		require.NoError(err)
		require.Equal(items, v)
	})
}

func TestSave(t *testing.T) {
	require := require.New(t)
	dir := tempDir(t)

	items := []interface{}{
		map[string]interface{}{"name": "Ann", "age": int64(31)},
		map[string]interface{}{"name": "Bob", "age": int64(12)},
	}

	for _, name := range []string{"out.json", "out.jsonl", "out.yaml", "out.csv"} {
		path := filepath.Join(dir, name)
		require.NoError(Save(path, items, "", false))

		v, err := Load(path, "")
		require.NoError(err)
		require.Equal(items, v, name)
	}

	err := Save(filepath.Join(dir, "out.xls"), items, "", false)
	require.True(ErrUnsupportedFormat.Is(err))
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "loader")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}
