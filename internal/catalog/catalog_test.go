package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validCatalogJSON(baseDir string) string {
	return `{
		"download_path": "` + filepath.Join(baseDir, "models") + `",
		"temp_path": "` + filepath.Join(baseDir, "temp") + `",
		"log_path": "` + filepath.Join(baseDir, "logs") + `",
		"allowed_domains": ["huggingface.co", "example.com"],
		"models": [
			{
				"id": "llama-3-8b",
				"name": "Llama 3 8B Instruct",
				"filename": "llama-3-8b-instruct.Q4_K_M.gguf",
				"size_gb": 4.9,
				"methods": [
					{"type": "wget", "url": "https://huggingface.co/m/llama.gguf"},
					{"type": "curl", "url": "https://mirror.example.com/llama.gguf"}
				]
			}
		]
	}`
}

func TestLoad_Valid(t *testing.T) {
	base := t.TempDir()
	path := writeCatalog(t, validCatalogJSON(base))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())

	m := cat.Get("llama-3-8b")
	require.NotNil(t, m)
	assert.Equal(t, "Llama 3 8B Instruct", m.DisplayName)
	assert.Len(t, m.Methods, 2)
	assert.Equal(t, MethodWget, m.Methods[0].Kind)

	// Directories are created as part of loading.
	for _, dir := range []string{cat.DownloadPath, cat.TempPath, cat.LogPath} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeCatalog(t, "{not json")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingPaths(t *testing.T) {
	path := writeCatalog(t, `{"models": []}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download_path")
}

func TestLoad_DuplicateID(t *testing.T) {
	base := t.TempDir()
	path := writeCatalog(t, `{
		"download_path": "`+filepath.Join(base, "models")+`",
		"temp_path": "`+filepath.Join(base, "temp")+`",
		"models": [
			{"id": "m1", "filename": "a.gguf", "methods": [{"type": "wget", "url": "https://x/a"}]},
			{"id": "m1", "filename": "b.gguf", "methods": [{"type": "wget", "url": "https://x/b"}]}
		]
	}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate model id")
}

func TestLoad_NoMethods(t *testing.T) {
	base := t.TempDir()
	path := writeCatalog(t, `{
		"download_path": "`+filepath.Join(base, "models")+`",
		"temp_path": "`+filepath.Join(base, "temp")+`",
		"models": [{"id": "m1", "filename": "a.gguf", "methods": []}]
	}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transfer methods")
}

func TestLoad_UnknownMethodKind(t *testing.T) {
	base := t.TempDir()
	path := writeCatalog(t, `{
		"download_path": "`+filepath.Join(base, "models")+`",
		"temp_path": "`+filepath.Join(base, "temp")+`",
		"models": [{"id": "m1", "filename": "a.gguf", "methods": [{"type": "rsync", "url": "https://x/a"}]}]
	}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method")
}

func TestGet_UnknownID(t *testing.T) {
	base := t.TempDir()
	cat, err := Load(writeCatalog(t, validCatalogJSON(base)))
	require.NoError(t, err)
	assert.Nil(t, cat.Get("nope"))
}

func TestArtifactPaths(t *testing.T) {
	base := t.TempDir()
	cat, err := Load(writeCatalog(t, validCatalogJSON(base)))
	require.NoError(t, err)

	m := cat.Get("llama-3-8b")
	assert.Equal(t, filepath.Join(cat.DownloadPath, m.Filename), cat.ArtifactPath(m))
	assert.Equal(t, filepath.Join(cat.TempPath, m.Filename+".tmp"), cat.TempArtifactPath(m))
}

func TestHostAllowed(t *testing.T) {
	base := t.TempDir()
	cat, err := Load(writeCatalog(t, validCatalogJSON(base)))
	require.NoError(t, err)

	tests := []struct {
		host string
		want bool
	}{
		{"huggingface.co", true},
		{"cdn.huggingface.co", true},
		{"HuggingFace.CO", true},
		{"mirror.example.com", true},
		{"evil.org", false},
		{"huggingface.co.evil.org", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cat.HostAllowed(tt.host), "host %q", tt.host)
	}
}

func TestHostAllowed_EmptyAllowList(t *testing.T) {
	c := &Catalog{}
	assert.False(t, c.HostAllowed("huggingface.co"))
}
