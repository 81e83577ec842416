// Package assembler turns an ordered list of scratch images into one output
// document and removes the scratch files afterwards.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoImages = errors.New("no images to assemble")

type Assembler interface {
	// Ext is the output file suffix including the dot.
	Ext() string
	// Assemble writes files, in order, to output. On error the inputs are
	// left untouched.
	Assemble(ctx context.Context, files []string, output string) error
}

// Select returns the assembler for format ("pdf" or "cbz"; empty means pdf).
func Select(format string) (Assembler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "pdf":
		return NewPDF(), nil
	case "cbz":
		return NewCBZ(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (available: pdf, cbz)", format)
	}
}

// Cleanup deletes files and then dir, which must be empty by then.
func Cleanup(files []string, dir string) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	if dir != "" {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// partPath is a sibling of output used while writing so a failed run never
// leaves a truncated document under the final name.
func partPath(output string) string {
	base := filepath.Base(output)
	ext := filepath.Ext(base)

	return filepath.Join(filepath.Dir(output), "."+strings.TrimSuffix(base, ext)+".part"+ext)
}

func commit(part, output string) error {
	if err := os.Rename(part, output); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("move output into place: %w", err)
	}

	return nil
}

func ensureOutputDir(output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	return nil
}
