package files

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *FileRepo {
	t.Helper()
	repo, err := NewFileRepository(FileConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return repo
}

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	content := "P=20;N=35;K=40"
	require.NoError(t, repo.Put(ctx, "manual/man_1/report.txt", strings.NewReader(content), int64(len(content)), "text/plain"))

	rc, err := repo.Open(ctx, "manual/man_1/report.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, string(body))

	require.NoError(t, repo.Delete(ctx, "manual/man_1/report.txt"))
	_, err = repo.Open(ctx, "manual/man_1/report.txt")
	assert.True(t, errors.IsNotFound(err))
}

func TestRejectsTraversal(t *testing.T) {
	repo := newTestRepo(t)
	for _, key := range []string{"../outside.txt", "manual/../../outside.txt", "manual/x/.."} {
		err := repo.Put(context.Background(), key, strings.NewReader("x"), 1, "text/plain")
		require.Error(t, err, key)
		assert.True(t, errors.IsValidation(err), key)
	}
}

func TestAcceptsDotsInsideNames(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	key := "manual/man_1/report..v2.txt"
	require.NoError(t, repo.Put(ctx, key, strings.NewReader("v2"), 2, "text/plain"))

	rc, err := repo.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, key := range []string{"manual/a/1.txt", "manual/a/2.txt", "manual/b/1.txt"} {
		require.NoError(t, repo.Put(ctx, key, strings.NewReader("x"), 1, "text/plain"))
	}

	n, err := repo.DeletePrefix(ctx, "manual/a/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.Open(ctx, "manual/b/1.txt")
	assert.NoError(t, err)
}
