// Package archive packages downloaded images as zip files.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ZipDirectory writes every regular file under dir into a deflate zip at
// dest. Entry names are relative to dir and use forward slashes.
func ZipDirectory(dir, dest string) (int, error) {
	return writeZip(dest, func(zw *zip.Writer) (int, error) {
		count := 0
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			if err := addFile(zw, dir, path, info); err != nil {
				return err
			}
			count++
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to archive %s: %w", dir, err)
		}
		return count, nil
	})
}

// ZipFiles writes the given files into a deflate zip at dest, named
// relative to root. Files outside root are stored under their base name.
func ZipFiles(root, dest string, files []string) (int, error) {
	return writeZip(dest, func(zw *zip.Writer) (int, error) {
		for _, path := range files {
			info, err := os.Stat(path)
			if err != nil {
				return 0, err
			}
			if err := addFile(zw, root, path, info); err != nil {
				return 0, err
			}
		}
		return len(files), nil
	})
}

func addFile(zw *zip.Writer, root, path string, info os.FileInfo) error {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to add %s: %w", rel, err)
	}
	return nil
}

// writeZip fills a zip through a temporary file and moves it to dest only
// when every entry was written
func writeZip(dest string, fill func(zw *zip.Writer) (int, error)) (int, error) {
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	count, fillErr := fill(zw)

	closeErr := zw.Close()
	if fileErr := out.Close(); closeErr == nil {
		closeErr = fileErr
	}
	if fillErr != nil || closeErr != nil {
		os.Remove(tmp)
		if fillErr != nil {
			return 0, fillErr
		}
		return 0, fmt.Errorf("failed to finish archive: %w", closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return count, nil
}

// Path returns the archive path for a directory
func Path(dir string) string {
	return strings.TrimRight(filepath.Clean(dir), string(filepath.Separator)) + ".zip"
}

// Package zips dir to dir+".zip" and removes dir unless keepFiles is set.
// It returns the archive path.
func Package(dir string, keepFiles bool) (string, error) {
	dest := Path(dir)
	if _, err := ZipDirectory(dir, dest); err != nil {
		return "", err
	}
	if !keepFiles {
		if err := os.RemoveAll(dir); err != nil {
			return dest, fmt.Errorf("archive written but failed to remove %s: %w", dir, err)
		}
	}
	return dest, nil
}
