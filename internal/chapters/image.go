package chapters

import "fmt"

// ImageRef is one page image found on the chapter page. Index is the
// element's position among matched elements and fixes the PDF page order.
type ImageRef struct {
	Index int
	URL   string
}

// FileName is the scratch file name for the page; zero padding keeps a
// plain lexical sort in page order.
func (r ImageRef) FileName(ext string) string {
	return fmt.Sprintf("%04d%s", r.Index, ext)
}

// RetrievedImage is a page image that made it to disk.
type RetrievedImage struct {
	Index int
	URL   string
	Path  string
	Size  int64
}

// Paths returns local paths in slice order.
func Paths(images []RetrievedImage) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.Path
	}

	return out
}
