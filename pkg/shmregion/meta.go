package shmregion

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"github.com/calvinalkan/greenbox/pkg/fs"
)

// Meta is the content of a region's sidecar file.
type Meta struct {
	Name       string    `json:"name"`
	BlockSize  int       `json:"block_size"`
	BlockCount int       `json:"block_count"`
	RegionSize int       `json:"region_size"`
	WriterID   string    `json:"writer_id"`
	PID        int       `json:"pid"`
	CreatedAt  time.Time `json:"created_at"`
}

func newMeta(name string, blockSize, blockCount, regionSize int) (Meta, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Meta{}, fmt.Errorf("generate writer id: %w", err)
	}

	return Meta{
		Name:       name,
		BlockSize:  blockSize,
		BlockCount: blockCount,
		RegionSize: regionSize,
		WriterID:   id.String(),
		PID:        os.Getpid(),
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}, nil
}

func writeMeta(fsys fs.FS, path string, meta Meta) error {
	data, err := sonnet.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	data = append(data, '\n')

	err = fsys.WriteFileAtomic(path, data)
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

func readMeta(fsys fs.FS, path string) (Meta, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, fmt.Errorf("metadata %s: %w", path, ErrNotExist)
		}

		return Meta{}, fmt.Errorf("read metadata: %w", err)
	}

	var meta Meta

	err = sonnet.Unmarshal(data, &meta)
	if err != nil {
		return Meta{}, fmt.Errorf("decode metadata %s: %w", path, err)
	}

	return meta, nil
}

// ReadMeta reads the sidecar of region name in dir (empty dir means
// [DefaultDir]).
//
// Returns an error wrapping [ErrNotExist] if there is no sidecar.
func ReadMeta(dir, name string) (Meta, error) {
	err := validateName(name)
	if err != nil {
		return Meta{}, err
	}

	return readMeta(fs.NewReal(), metaPath(RegionPath(dir, name)))
}

// List returns the metadata of every region in dir that has both a region
// file and a readable sidecar, sorted by name. A missing dir yields an empty
// list.
func List(dir string) ([]Meta, error) {
	if dir == "" {
		dir = DefaultDir
	}

	fsys := fs.NewReal()

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("list regions: %w", err)
	}

	var metas []Meta

	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), regionExt)
		if !ok || entry.IsDir() || validateName(name) != nil {
			continue
		}

		meta, err := readMeta(fsys, metaPath(RegionPath(dir, name)))
		if errors.Is(err, ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, err
		}

		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })

	return metas, nil
}
