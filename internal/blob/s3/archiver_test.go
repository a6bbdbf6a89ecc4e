package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

type memBlobs struct {
	objects   map[string][]byte
	multipart int
	failPut   error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, p string, data io.Reader, _ string) error {
	if m.failPut != nil {
		return m.failPut
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[p] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, p string, data io.Reader, _ int64) error {
	m.multipart++
	return m.Put(ctx, p, data, "")
}

func (m *memBlobs) Get(_ context.Context, p string) (io.ReadCloser, error) {
	b, ok := m.objects[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func TestObjectPath(t *testing.T) {
	at := time.Date(2026, 3, 7, 9, 5, 2, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "boards/american-football/2026-03-07/140502-abc.json",
		ObjectPath("boards", "American Football", at, "abc"))
	assert.Equal(t, "boards/all/2026-03-07/140502-x.json", ObjectPath("boards", "", at, "x"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://e2.example.com", endpointURL("e2.example.com", true))
	assert.Equal(t, "https://s3.example.com", endpointURL("https://s3.example.com", false))
}

func newTestArchiver(blobs *memBlobs) *BoardArchiver {
	a := NewBoardArchiver(blobs, blobs, "")
	a.now = func() time.Time { return time.Date(2026, 3, 7, 12, 30, 0, 0, time.UTC) }
	ids := 0
	a.newID = func() string {
		ids++
		return string(rune('a' + ids - 1))
	}
	return a
}

func TestBoardArchiver_ArchiveListOpen(t *testing.T) {
	blobs := newMemBlobs()
	a := newTestArchiver(blobs)
	ctx := context.Background()

	p1, err := a.Archive(ctx, "MMA", map[string]int{"markets": 3})
	require.NoError(t, err)
	assert.Equal(t, "boards/mma/2026-03-07/123000-a.json", p1)

	a.now = func() time.Time { return time.Date(2026, 3, 7, 12, 45, 0, 0, time.UTC) }
	p2, err := a.Archive(ctx, "MMA", map[string]int{"markets": 4})
	require.NoError(t, err)

	_, err = a.Archive(ctx, "NFL", map[string]int{"markets": 1})
	require.NoError(t, err)

	infos, err := a.List(ctx, "MMA", time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, p2, infos[0].Path)
	assert.Equal(t, p1, infos[1].Path)

	none, err := a.List(ctx, "MMA", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)

	rc, err := a.Open(ctx, p1)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"markets":3}`, string(body))
	assert.Zero(t, blobs.multipart)
}

func TestBoardArchiver_OpenRejectsForeignPaths(t *testing.T) {
	a := newTestArchiver(newMemBlobs())
	ctx := context.Background()

	for _, p := range []string{
		"secrets/key.json",
		"boards/../secrets/key.json",
		"boards/mma/2026-03-07/x.txt",
		"/boards/mma/x.json",
		"",
	} {
		_, err := a.Open(ctx, p)
		assert.ErrorIs(t, err, ErrOutsideArchive, p)
	}

	_, err := a.Open(ctx, "boards/mma/2026-03-07/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoardArchiver_UploadError(t *testing.T) {
	blobs := newMemBlobs()
	blobs.failPut = errors.New("boom")
	a := newTestArchiver(blobs)

	_, err := a.Archive(context.Background(), "MMA", struct{}{})
	assert.ErrorContains(t, err, "boom")
}
