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

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/codec"
)

const people = `[{"name":"A","age":25},{"name":"B","age":40},{"name":"C","age":35}]`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestExecStdin(t *testing.T) {
	require := require.New(t)

	out, err := run(t, people, "exec", "-i", "-", "SELECT name, age FROM users WHERE age > 30")
	require.NoError(err)
	require.JSONEq(`[{"age":40,"name":"B"},{"age":35,"name":"C"}]`, out)
}

func TestExecFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(os.WriteFile(path, []byte("name,age\nA,25\nB,40\n"), 0o644))

	out, err := run(t, "", "exec", "-i", path, "-o", "csv", "SELECT name FROM people WHERE age > 30")
	require.NoError(err)
	require.Equal("name\nB\n", out)
}

func TestExecOutputFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "adults.yaml")
	out, err := run(t, people, "exec", "-i", "-", "-O", path, "SELECT name FROM users WHERE age > 30")
	require.NoError(err)
	require.Empty(out)

	data, err := os.ReadFile(path)
	require.NoError(err)
	require.Equal("- name: B\n- name: C\n", string(data))
}

func TestExecFailure(t *testing.T) {
	require := require.New(t)

	_, err := run(t, people, "exec", "-i", "-", "SELECT * FROM t; DROP TABLE users")
	require.Error(err)
	require.Contains(err.Error(), "parse failed")

	_, err = run(t, "", "exec", "-i", "people.xls", "SELECT * FROM t")
	require.Error(err)
}

func TestTranslate(t *testing.T) {
	require := require.New(t)

	out, err := run(t, "", "translate", "--from", "SQL", "--to", "XPath", "SELECT name FROM users WHERE age > 18")
	require.NoError(err)
	require.Equal("//users/user[age > 18]/name\n", out)

	_, err = run(t, "", "translate", "SELECT name FROM users")
	require.Error(err)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	out, err := run(t, "", "parse", "-d", "SQL", "SELECT name FROM users")
	require.NoError(err)
	require.Contains(out, "SELECT")

	out, err = run(t, "", "parse", "-d", "SQL", "--format", "json", "SELECT name FROM users")
	require.NoError(err)

	tree, err := codec.Unmarshal([]byte(out), codec.JSON)
	require.NoError(err)
	require.Equal(sql.Root, tree.Type)

	_, err = run(t, "", "parse", "--format", "xml", "SELECT name FROM users")
	require.Error(err)
}

func TestExplain(t *testing.T) {
	require := require.New(t)

	out, err := run(t, "", "explain", "-d", "SQL", "SELECT name FROM users WHERE age > 18")
	require.NoError(err)
	require.Contains(out, sql.OpSequentialScan)
}

func TestDetect(t *testing.T) {
	require := require.New(t)

	out, err := run(t, "", "detect", "SELECT name FROM users WHERE age > 18")
	require.NoError(err)
	require.True(strings.HasPrefix(out, "SQL\t"))

	out, err = run(t, "", "detect", "--all", "SELECT name FROM users WHERE age > 18")
	require.NoError(err)
	require.NotEmpty(strings.Split(strings.TrimSpace(out), "\n"))
}

func TestDialects(t *testing.T) {
	require := require.New(t)

	out, err := run(t, "", "dialects")
	require.NoError(err)
	require.Contains(out, "parse:")
	require.Contains(out, "XPath")
}

func TestRootFlags(t *testing.T) {
	require := require.New(t)

	_, err := run(t, "", "--log-level", "loud", "dialects")
	require.Error(err)

	_, err = run(t, "", "--mode", "sloppy", "dialects")
	require.Error(err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte("max_text_length: 10\n"), 0o644))

	_, err = run(t, "", "--config", path, "parse", "-d", "SQL", "SELECT name FROM users")
	require.Error(err)
}

func TestStats(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	_, err := run(t, "", "stats", "show")
	require.Error(err)
	require.True(ErrNoStatsDir.Is(err))

	_, err = run(t, "", "--stats-dir", dir, "stats", "index", "users", "name")
	require.NoError(err)

	_, err = run(t, people, "--stats-dir", dir, "stats", "analyze", "users")
	require.NoError(err)

	out, err := run(t, "", "--stats-dir", dir, "stats", "show")
	require.NoError(err)
	require.Equal("users\n", out)

	out, err = run(t, "", "--stats-dir", dir, "stats", "show", "users")
	require.NoError(err)
	require.Contains(out, "row_count: 3")
	require.Contains(out, "- name")

	out, err = run(t, "", "--stats-dir", dir, "explain", "-d", "SQL", "SELECT * FROM users WHERE name = 'B'")
	require.NoError(err)
	require.Contains(out, sql.OpIndexScan)
}
