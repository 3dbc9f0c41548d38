package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// PartialSuffix marks a library file whose copy has not finished.
const PartialSuffix = ".partial"

// CopyOptions controls CopyFile.
type CopyOptions struct {
	// Verify re-reads the finished copy and compares its SHA-256 with the
	// bytes read from the source before renaming it into place.
	Verify bool
	// Mode is the permission of the new file; zero means 0o644.
	Mode os.FileMode
}

// CopyFile copies src to dst through dst+PartialSuffix and renames the copy
// into place, so dst is either absent or complete. A leftover partial file
// from an interrupted copy is overwritten. The source modification time is
// kept. It returns the number of bytes copied.
func CopyFile(src, dst string, opts CopyOptions) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	mode := opts.Mode
	if mode == 0 {
		mode = 0o644
	}
	partial := dst + PartialSuffix
	written, digest, err := copyToPartial(in, partial, mode)
	if err == nil && written != info.Size() {
		err = fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err == nil && opts.Verify {
		err = verifyDigest(partial, digest)
	}
	if err == nil {
		err = os.Chtimes(partial, info.ModTime(), info.ModTime())
	}
	if err == nil {
		err = os.Rename(partial, dst)
	}
	if err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	return written, nil
}

func copyToPartial(in io.Reader, partial string, mode os.FileMode) (int64, []byte, error) {
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, nil, err
	}
	hasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, hasher))
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, nil, err
	}
	return written, hasher.Sum(nil), nil
}

func verifyDigest(path string, want []byte) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("re-read copy: %w", err)
	}
	if !bytes.Equal(hasher.Sum(nil), want) {
		return fmt.Errorf("copy hash mismatch: written data differs from source")
	}
	return nil
}
