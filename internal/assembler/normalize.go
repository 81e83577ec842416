package assembler

import (
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used when re-encoding pages.
const JPEGQuality = 90

// Normalize decodes the image at path (jpeg, png, gif, bmp, tiff, webp) and
// rewrites it in place as a baseline JPEG. PDF embedding chokes on webp,
// interlaced PNGs and odd color profiles; one re-encode sidesteps all of them.
func Normalize(path string) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return nil
}

func normalizeAll(files []string) error {
	for _, f := range files {
		if err := Normalize(f); err != nil {
			return err
		}
	}

	return nil
}
