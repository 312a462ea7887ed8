package files_test

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PvtMilo/gen-ai/internal/files"
)

func multipartFixture(t *testing.T, fieldName, fileName string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File[fieldName][0]
}

func TestSaveUpload_GeneratesHexName(t *testing.T) {
	dir := t.TempDir()
	header := multipartFixture(t, "file", "photo.JPG", []byte("jpeg-bytes"))

	filename, err := files.SaveUpload(header, dir)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(filename, ".jpg"))
	assert.Len(t, strings.TrimSuffix(filename, ".jpg"), 32)

	saved, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), saved)
}

func TestSaveUpload_RejectsUnknownExtension(t *testing.T) {
	header := multipartFixture(t, "file", "notes.txt", []byte("hi"))

	_, err := files.SaveUpload(header, t.TempDir())
	assert.ErrorIs(t, err, files.ErrInvalidFileType)
}

func TestToDataURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	url, err := files.ToDataURL(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	jpg := filepath.Join(dir, "img.jpg")
	require.NoError(t, os.WriteFile(jpg, []byte{1}, 0o644))
	url, err = files.ToDataURL(jpg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestResolveStatic(t *testing.T) {
	local, err := files.ResolveStatic("/static/results/a.png", "/static/results/", "/srv/static/results")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/static/results", "a.png"), local)
}

func TestResolveStatic_RejectsForeignPrefix(t *testing.T) {
	_, err := files.ResolveStatic("/etc/passwd", "/static/results/", "/srv/static/results")
	assert.Error(t, err)
}

func TestResolveStatic_FlattensTraversal(t *testing.T) {
	local, err := files.ResolveStatic("/static/results/../../etc/passwd", "/static/results/", "/srv/static/results")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/static/results", "passwd"), local)
}

func TestResolveStatic_EmptyName(t *testing.T) {
	_, err := files.ResolveStatic("/static/results/", "/static/results/", "/srv/static/results")
	assert.Error(t, err)
}
