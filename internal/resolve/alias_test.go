package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_Builtins(t *testing.T) {
	a := NewAliasTable()
	assert.Equal(t, "BANK OF AMERICA", a.Canonical("BOFA"))
	assert.Equal(t, "JPMORGAN CHASE", a.Canonical("chase"))
	assert.Equal(t, "CAPITAL ONE", a.Canonical("Cap One"))
	assert.Equal(t, "SOME CREDIT UNION", a.Canonical("Some Credit Union, LLC"))
}

func TestSameCreditor(t *testing.T) {
	a := NewAliasTable()
	assert.True(t, a.SameCreditor("BOFA", "Bank of America, N.A."))
	assert.True(t, a.SameCreditor("Chase Bank", "JPMCB"))
	assert.True(t, a.SameCreditor("Wells Fargo", "Wells Farggo")) // typo within edit distance
	assert.False(t, a.SameCreditor("Citibank", "Capital One"))
	assert.False(t, a.SameCreditor("", "Chase"))
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ACME FIN: ACME FINANCIAL\n"), 0o644))

	a := NewAliasTable()
	require.NoError(t, a.LoadOverrides(path))
	assert.True(t, a.SameCreditor("Acme Fin", "ACME Financial"))
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	a := NewAliasTable()
	assert.Error(t, a.LoadOverrides("/nope/aliases.yaml"))
}
