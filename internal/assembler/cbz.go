package assembler

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CBZ stores the pages in a zip archive in the given order.
type CBZ struct{}

func NewCBZ() *CBZ { return &CBZ{} }

func (*CBZ) Ext() string { return ".cbz" }

func (c *CBZ) Assemble(ctx context.Context, files []string, output string) error {
	if len(files) == 0 {
		return ErrNoImages
	}

	if err := normalizeAll(files); err != nil {
		return err
	}

	if err := ensureOutputDir(output); err != nil {
		return err
	}

	part := partPath(output)
	if err := writeCBZ(ctx, files, part); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("cbz: %w", err)
	}

	return commit(part, output)
}

func writeCBZ(ctx context.Context, files []string, output string) (err error) {
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	z := zip.NewWriter(out)
	defer func() {
		if cerr := z.Close(); err == nil {
			err = cerr
		}
	}()

	// entries are renumbered from 0001 in the given order
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFileToZip(z, file, fmt.Sprintf("%04d%s", i+1, filepath.Ext(file))); err != nil {
			return err
		}
	}

	return nil
}

func addFileToZip(z *zip.Writer, file, name string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
