package media

import (
	"io"
	"os"
	"path/filepath"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

// dedupMove hashes tempPath and moves it into destDir as "<hash>.<ext>",
// or discards it if that content-addressed name already exists there.
// Returns the hash and the path the file now lives at.
func dedupMove(tempPath, filename, destDir string) (hash, ext, destPath string, err error) {
	ext = extOf(filename)

	hash, err = hashFile(tempPath)
	if err != nil {
		return "", "", "", err
	}

	destPath = filepath.Join(destDir, hash+"."+ext)

	if _, statErr := os.Stat(destPath); statErr == nil {
		if err := os.Remove(tempPath); err != nil {
			return "", "", "", apperr.Wrap(apperr.KindMediaError, "remove duplicate upload", err)
		}
		return hash, ext, destPath, nil
	}

	if err := moveFile(tempPath, destPath); err != nil {
		return "", "", "", err
	}
	if err := os.Chmod(destPath, 0o644); err != nil {
		return "", "", "", apperr.Wrap(apperr.KindMediaError, "set original file permissions", err)
	}

	return hash, ext, destPath, nil
}

// moveFile renames src to dst, falling back to a copy-then-remove when
// they straddle filesystems (os.Rename returns EXDEV in that case, e.g.
// when FilesRoot spans a separate volume from the OS temp directory).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "open upload to move", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "create destination file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return apperr.Wrap(apperr.KindMediaError, "copy upload to destination", err)
	}

	return os.Remove(src)
}
