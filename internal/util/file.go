package util

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Entry is an in-memory file written next to the page images.
type Entry struct {
	Name string
	Data []byte
}

// CreateCBZ packs files, sorted by name, plus extras into output. A failed
// archive is removed.
func CreateCBZ(files []string, output string, extras ...Entry) (err error) {
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	z := zip.NewWriter(out)
	defer func() {
		err = errors.Join(err, z.Close(), out.Close())
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, file := range sorted {
		if err := addFileToZip(z, file); err != nil {
			return fmt.Errorf("cbz %s: %w", filepath.Base(file), err)
		}
	}

	for _, e := range extras {
		w, err := z.Create(e.Name)
		if err != nil {
			return fmt.Errorf("cbz %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return fmt.Errorf("cbz %s: %w", e.Name, err)
		}
	}

	return nil
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	// Images are already compressed.
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
