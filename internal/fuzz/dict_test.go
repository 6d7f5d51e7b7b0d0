package fuzz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFuzzingFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFindDictionaryFromOptionsFile(t *testing.T) {
	dir := t.TempDir()
	want := writeFuzzingFile(t, dir, "proto.dict", "\"MAGIC\"\n")
	writeFuzzingFile(t, dir, "parser-fuzz.options", "[libfuzzer]\ndict = proto.dict\n")

	assert.Equal(t, want, FindDictionary(dir, "parser-fuzz"))
}

func TestFindDictionaryOptionsEntryMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFuzzingFile(t, dir, "parser-fuzz.options", "dict = missing.dict\n")

	assert.Empty(t, FindDictionary(dir, "parser-fuzz"))
}

func TestFindDictionaryFallsBackToDictFile(t *testing.T) {
	dir := t.TempDir()
	want := writeFuzzingFile(t, dir, "parser-fuzz.dict", "\"MAGIC\"\n")

	assert.Equal(t, want, FindDictionary(dir, "parser-fuzz"))
}

func TestFindDictionaryNone(t *testing.T) {
	assert.Empty(t, FindDictionary(t.TempDir(), "parser-fuzz"))
}
