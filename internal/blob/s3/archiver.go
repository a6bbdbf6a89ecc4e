package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// DefaultPrefix is the key prefix for archived boards.
const DefaultPrefix = "boards"

// multipartThreshold switches Archive to the multipart uploader.
const multipartThreshold = 8 * 1024 * 1024

// ErrOutsideArchive is returned by Open for paths not under the archive prefix.
var ErrOutsideArchive = errors.New("s3blob: path outside archive")

// BoardArchiver writes board views as JSON objects laid out as
//
//	<prefix>/<sport>/<yyyy-mm-dd>/<hhmmss>-<uuid>.json
//
// and lists or reads them back.
type BoardArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string

	now   func() time.Time
	newID func() string
}

// NewBoardArchiver creates a BoardArchiver. An empty prefix selects
// DefaultPrefix.
func NewBoardArchiver(w domain.BlobWriter, r domain.BlobReader, prefix string) *BoardArchiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &BoardArchiver{
		writer: w,
		reader: r,
		prefix: prefix,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Archive uploads v as the sport's board at the current time and returns the
// object path.
func (a *BoardArchiver) Archive(ctx context.Context, sport string, v any) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", sport, err)
	}

	p := ObjectPath(a.prefix, sport, a.now(), a.newID())
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, p, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, p, bytes.NewReader(buf), "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", sport, err)
	}
	return p, nil
}

// List returns archived boards for sport, newest first. A zero day lists
// every day.
func (a *BoardArchiver) List(ctx context.Context, sport string, day time.Time) ([]domain.BlobInfo, error) {
	prefix := a.prefix + "/" + sportSlug(sport) + "/"
	if !day.IsZero() {
		prefix += day.UTC().Format(time.DateOnly) + "/"
	}

	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive list: %w", err)
	}
	// Keys sort chronologically within a sport.
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path > infos[j].Path })
	return infos, nil
}

// Open returns the archived object at p. The caller closes it.
func (a *BoardArchiver) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	clean := path.Clean("/" + p)[1:]
	if clean != p || !strings.HasPrefix(clean, a.prefix+"/") || !strings.HasSuffix(clean, ".json") {
		return nil, ErrOutsideArchive
	}
	return a.reader.Get(ctx, clean)
}

// ObjectPath builds the key for a board archived at t.
func ObjectPath(prefix, sport string, t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%s/%s/%s-%s.json",
		prefix, sportSlug(sport), t.Format(time.DateOnly), t.Format("150405"), id)
}

func sportSlug(sport string) string {
	s := strings.ToLower(strings.TrimSpace(sport))
	if s == "" {
		return "all"
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "/", " ")), "-")
}
