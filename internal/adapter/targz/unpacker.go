package targz

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwygoda/fetchdata/internal/domain"
)

const copyBlockSize = 32 * 1024

// Unpacker implements domain.Unpacker for .tgz files.
type Unpacker struct{}

// New creates a new Unpacker.
func New() *Unpacker {
	return &Unpacker{}
}

// Unpack extracts archive into destDir, keeping the archive's relative paths.
// Extraction is not atomic: on failure, entries already written stay on disk.
func (u *Unpacker) Unpack(ctx context.Context, archive, destDir string, p domain.Progress) error {
	name := filepath.Base(archive)
	n, err := u.extract(ctx, archive, destDir)
	if err != nil {
		p.SetLabel(fmt.Sprintf("Failed to extract %s: %v", name, err))
		return &domain.UnpackError{Archive: name, Err: err}
	}
	log.Printf("entry %s: extracted %d file(s) to %s", name, n, destDir)
	p.SetLabel("Extracted " + name)
	return nil
}

func (u *Unpacker) extract(ctx context.Context, archive, destDir string) (int, error) {
	f, err := os.Open(archive)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	// Every write goes through root, which refuses to follow links out of
	// destDir. The lexical checks below reject obvious escapes early.
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	tr := tar.NewReader(gz)
	buf := make([]byte, copyBlockSize)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, err
		}

		target, err := safeRel(hdr.Name)
		if err != nil {
			return files, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(target, dirMode(hdr)); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := writeFile(root, target, tr, hdr, buf); err != nil {
				return files, err
			}
			files++
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return files, fmt.Errorf("%w: symlink %s -> %s", domain.ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if _, err := safeRel(filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return files, fmt.Errorf("%w: symlink %s -> %s", domain.ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := prepare(root, target); err != nil {
				return files, err
			}
			if err := root.Symlink(hdr.Linkname, target); err != nil {
				return files, err
			}
		case tar.TypeLink:
			// Hard link names are relative to the archive root.
			source, err := safeRel(hdr.Linkname)
			if err != nil {
				return files, fmt.Errorf("%w: hard link %s -> %s", domain.ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := prepare(root, target); err != nil {
				return files, err
			}
			if err := root.Link(source, target); err != nil {
				return files, err
			}
			files++
		default:
			log.Printf("entry %s: skipping %s (unsupported type %q)", filepath.Base(archive), hdr.Name, hdr.Typeflag)
		}
	}
}

// safeRel cleans an archive member name into a path relative to the
// destination, rejecting absolute names and names that climb out of it.
func safeRel(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsafePath, name)
	}
	return rel, nil
}

// prepare creates target's parent and clears any existing entry at target.
func prepare(root *os.Root, target string) error {
	if err := root.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if err := root.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeFile(root *os.Root, target string, r io.Reader, hdr *tar.Header, buf []byte) error {
	if err := root.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	out, err := root.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(hdr))
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(out, r, buf); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		return 0644
	}
	return mode | 0200
}

func dirMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		return 0755
	}
	return mode | 0700
}
