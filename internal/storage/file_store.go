package storage

import (
	"os"

	"github.com/pkg/errors"

	"github.com/relicdb/relicdb/internal/dberr"
)

// FileStore provides block-addressed read/write of fixed-size pages to a
// single file. Page 0 is reserved and never handed out by the page
// manager built on top of it; page 1 is the metadata page. I/O failures
// are wrapped with the (path, page id) that failed, per spec.
type FileStore struct {
	path string
	file *os.File
	size int64 // file size in bytes, kept in sync with every extend/write
}

// OpenFileStore opens path, creating it if createIfMissing is true and it
// does not yet exist.
func OpenFileStore(path string, createIfMissing bool) (*FileStore, error) {
	flags := os.O_RDWR
	if createIfMissing {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open file store %s", path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat file store %s", path)
	}
	return &FileStore{path: path, file: f, size: stat.Size()}, nil
}

// PageCount returns the number of whole pages currently in the file.
func (fs *FileStore) PageCount() int64 {
	return fs.size / PageSize
}

// SizeBytes returns the current file size in bytes.
func (fs *FileStore) SizeBytes() int64 { return fs.size }

// ReadPage reads the page at id into a fresh *Page.
func (fs *FileStore) ReadPage(id PageID) (*Page, error) {
	if id < 0 || int64(id) >= fs.PageCount() {
		return nil, dberr.Storage(dberr.IORead, "page %d out of range (%s)", id, fs.path)
	}
	buf := make([]byte, PageSize)
	n, err := fs.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil {
		return nil, errors.Wrapf(dberr.Storage(dberr.IORead, "read page %d from %s", id, fs.path), "%v", err)
	}
	if n != PageSize {
		return nil, dberr.Storage(dberr.IORead, "short read for page %d in %s: got %d bytes", id, fs.path, n)
	}
	return LoadPage(buf)
}

// WritePage writes page to its own id's slot, extending the file if
// necessary.
func (fs *FileStore) WritePage(page *Page) error {
	id := page.ID()
	offset := int64(id) * PageSize
	n, err := fs.file.WriteAt(page.Bytes(), offset)
	if err != nil {
		return errors.Wrapf(dberr.Storage(dberr.IOWrite, "write page %d to %s", id, fs.path), "%v", err)
	}
	if n != PageSize {
		return dberr.Storage(dberr.IOWrite, "short write for page %d in %s: wrote %d bytes", id, fs.path, n)
	}
	if end := offset + PageSize; end > fs.size {
		fs.size = end
	}
	return nil
}

// Extend grows the file by exactly one page and returns the new page's id.
// The new page is written as a zeroed, freshly-initialized FREE page so
// that PageCount() reflects reality even before the caller persists its
// real content.
func (fs *FileStore) Extend() (PageID, error) {
	id := PageID(fs.PageCount())
	page := NewPage(id, PageTypeFree)
	if err := fs.WritePage(page); err != nil {
		return InvalidPageID, err
	}
	return id, nil
}

// Sync flushes the OS file buffers to stable storage.
func (fs *FileStore) Sync() error {
	if err := fs.file.Sync(); err != nil {
		return errors.Wrapf(dberr.Storage(dberr.IOWrite, "sync %s", fs.path), "%v", err)
	}
	return nil
}

// Close closes the underlying file descriptor. Callers are expected to
// flush the buffer cache first.
func (fs *FileStore) Close() error {
	return fs.file.Close()
}

// Path returns the filesystem path backing this store.
func (fs *FileStore) Path() string { return fs.path }

// DeleteFileStore removes the file at path, treating a missing file as
// success. Used when an index is dropped (directly or as part of DROP
// TABLE) to remove the index's dedicated file; tables have no file of
// their own.
func DeleteFileStore(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.Remove(path)
}
