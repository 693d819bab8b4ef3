package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("ENV", "local")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestClassifyCmd(t *testing.T) {
	out := runRoot(t, "classify", "--env", "local", "--expand", "isapre")

	var got classifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "isapre", got.Query)
	assert.Equal(t, "Salud > Isapres", got.Classification.TaxonomyPath)
	assert.NotEmpty(t, got.Classification.Filters)
	assert.True(t, strings.HasPrefix(got.ExpandedQuery, "isapre "))
}

func TestClassifyCmd_InvalidType(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"classify", "--env", "local", "--type", "broad", "isapres"})
	assert.Error(t, cmd.Execute())
}

func TestTaxonomyCmd(t *testing.T) {
	out := runRoot(t, "taxonomy", "--env", "local")

	var info struct {
		TotalCategories  int      `json:"total_categories"`
		FallbackCategory string   `json:"fallback_category"`
		Categories       []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "Institucionalidad", info.FallbackCategory)
	assert.Len(t, info.Categories, info.TotalCategories)
}

func TestTaxonomyCmd_Tree(t *testing.T) {
	out := runRoot(t, "taxonomy", "--env", "local", "--tree")
	assert.Contains(t, out, "Salud\n")
	assert.Contains(t, out, "Isapres (")
}
