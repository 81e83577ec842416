package assembler

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating a config dir in the user's home
	api.DisableConfigDir()
}

// PDF writes one image per page, each page sized to its image.
type PDF struct {
	conf *model.Configuration
}

func NewPDF() *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &PDF{conf: conf}
}

func (*PDF) Ext() string { return ".pdf" }

func (p *PDF) Assemble(ctx context.Context, files []string, output string) error {
	if len(files) == 0 {
		return ErrNoImages
	}

	if err := normalizeAll(files); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := ensureOutputDir(output); err != nil {
		return err
	}

	// pdfcpu appends to an existing file, so always start from nothing
	part := partPath(output)
	_ = os.Remove(part)

	if err := api.ImportImagesFile(files, part, nil, p.conf); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("pdf: %w", err)
	}

	return commit(part, output)
}
