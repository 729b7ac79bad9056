package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlanFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFilesParsesEveryParameterSet(t *testing.T) {
	path := writePlanFile(t, "shells.yml", `---
parameters:
  - SHELL: sh
  - SHELL: bash
suite: shell <SHELL>
tests:
  - title: echo
    run: ["<SHELL>", "-c", "echo hi"]
`)
	plans, err := LoadFiles(path)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "shell sh", plans[0].Suite)
	assert.Equal(t, []string{"sh", "-c", "echo hi"}, plans[0].Tests[0].Run)
	assert.Equal(t, "shell bash", plans[1].Suite)
	assert.Equal(t, path, plans[1].Source.FilePath)
	assert.Equal(t, "(SHELL=bash)", plans[1].Source.ParamsString())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadFilesReportsInvalidPlan(t *testing.T) {
	path := writePlanFile(t, "bad.yml", "tests:\n  - title: untitled suite\n")
	_, err := LoadFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid plan "bad.yml"`)
	assert.Contains(t, err.Error(), "suite name is required")
}

func TestSourceParamsStringIsSorted(t *testing.T) {
	s := Source{Params: Variables{"B": ldvalue.Int(2), "A": ldvalue.String("x")}}
	assert.Equal(t, "(A=x,B=2)", s.ParamsString())
	assert.Equal(t, "", Source{}.ParamsString())
}
