package rewriter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ossyrian/runzip/internal/zipfmt"
)

const tempPattern = ".runzip-*.zip"

// ReplaceFile atomically replaces the file at path with whatever fn writes.
//
// Output goes to a temp file in the same directory, which is synced, given
// the original permission bits and renamed over path. The directory is
// synced after the rename when the platform allows it. If fn fails, ctx is
// cancelled, or any step errors, the temp file is removed and path is left
// untouched.
//
// Every release closer is closed once fn returns and before the rename:
// Windows refuses to replace a file that is still open, so callers reading
// from path pass that handle here.
func ReplaceFile(ctx context.Context, path string, fn func(w io.Writer) error, release ...io.Closer) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", zipfmt.ErrIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", zipfmt.ErrIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // best-effort cleanup
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	err = fn(tmp)
	for _, c := range release {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %w", zipfmt.ErrIO, path, cerr)
		}
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync temp file: %w", zipfmt.ErrIO, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: failed to chmod temp file: %w", zipfmt.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %w", zipfmt.ErrIO, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: failed to rename %s over %s: %w", zipfmt.ErrIO, tmpName, path, err)
	}
	committed = true

	// persist the rename; directories cannot be synced on every platform
	_ = syncDir(filepath.Dir(path)) //nolint:errcheck // best-effort
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
