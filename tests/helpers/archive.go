package helpers

import (
	"archive/tar"
	"archive/zip"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteZip writes a zip archive to the path provided containing the
// files given, keyed by their name inside the archive.
func WriteZip(t *testing.T, path string, files map[string][]byte) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	archive := zip.NewWriter(out)
	for _, name := range sortedNames(files) {
		w, err := archive.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}

	require.NoError(t, archive.Close())
}

// WriteTarBz2 writes a bzip2 compressed tar archive to the path
// provided, which must end in '.tar.bz2'. The test is skipped if the
// bzip2 binary is unavailable.
func WriteTarBz2(t *testing.T, path string, files map[string][]byte) {
	bzip, err := exec.LookPath("bzip2")
	if err != nil {
		t.Skip("bzip2 is required to build the test archive")
	}

	tarPath := path[:len(path)-len(".bz2")]
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(tarPath)
	require.NoError(t, err)

	archive := tar.NewWriter(out)
	for _, name := range sortedNames(files) {
		require.NoError(t, archive.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(files[name])), Typeflag: tar.TypeReg}))
		_, err := archive.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, archive.Close())
	require.NoError(t, out.Close())

	require.NoError(t, exec.Command(bzip, "-f", tarPath).Run())
}

// ReadFile returns the content of the file at the path provided.
func ReadFile(t *testing.T, path string) []byte {
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return content
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
