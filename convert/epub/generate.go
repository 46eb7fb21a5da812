// Package epub packages reconstructed book content as EPUB 3 with NCX
// fallback.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"jrr/common"
	"jrr/config"
	"jrr/content"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	textDir         = "Text"
	fontsDir        = "Fonts"
	stylesDir       = "Styles"
	stylesheetHref  = stylesDir + "/stylesheet.css"
	coverPageHref   = "cover.xhtml"
	navHref         = "nav.xhtml"
	ncxHref         = "toc.ncx"
)

type chapterData struct {
	ID       string
	Filename string
	Title    string
	Doc      *etree.Document
}

// Generate creates EPUB file at outputPath. Package is assembled next to the
// extraction folder first and moved to its final location only when complete.
// Informational logging is muted while packaging, failures are reported as
// generation errors.
func Generate(ctx context.Context, c *content.Content, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log = log.Named("epub")

	log.Info("Generating EPUB", zap.Int("chapters", len(c.Chapters)), zap.String("output", outputPath))

	tmpName := c.Dir + ".epub"
	defer os.Remove(tmpName)

	if err := assemble(ctx, c, tmpName, cfg, config.Quiet(log)); err != nil {
		return common.NewError(common.ErrorKindGeneration, "epub", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return common.NewError(common.ErrorKindGeneration, "epub", fmt.Errorf("unable to create output directory: %w", err))
	}

	var err error
	if cfg.FixZip {
		err = copyZipWithoutDataDescriptors(tmpName, outputPath)
	} else {
		err = copyFile(tmpName, outputPath)
	}
	if err != nil {
		os.Remove(outputPath)
		return common.NewError(common.ErrorKindGeneration, "epub", err)
	}
	return nil
}

func assemble(ctx context.Context, c *content.Content, tmpName string, cfg *config.DocumentConfig, log *zap.Logger) error {
	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := writeContainer(zw); err != nil {
		return fmt.Errorf("unable to write container: %w", err)
	}

	chapters, err := convertToXHTML(ctx, c)
	if err != nil {
		return fmt.Errorf("unable to convert content: %w", err)
	}
	for _, chapter := range chapters {
		if err := writeXMLToZip(zw, path.Join(oebpsDir, chapter.Filename), chapter.Doc); err != nil {
			return fmt.Errorf("unable to write chapter %s: %w", chapter.ID, err)
		}
	}

	res, err := collectResources(ctx, c, cfg, log)
	if err != nil {
		return fmt.Errorf("unable to prepare resources: %w", err)
	}
	for _, r := range res.items {
		if err := writeDataToZip(zw, path.Join(oebpsDir, r.Href), r.Data); err != nil {
			return fmt.Errorf("unable to write %s: %w", r.Href, err)
		}
	}
	if res.cover != nil {
		if err := writeCoverPage(zw, c, res, cfg); err != nil {
			return fmt.Errorf("unable to write cover page: %w", err)
		}
	}

	if err := writeNav(zw, c, chapters); err != nil {
		return fmt.Errorf("unable to write NAV: %w", err)
	}
	if err := writeNCX(zw, c, chapters); err != nil {
		return fmt.Errorf("unable to write NCX: %w", err)
	}
	if err := writeOPF(zw, c, chapters, res); err != nil {
		return fmt.Errorf("unable to write OPF: %w", err)
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	log.Debug("EPUB assembled", zap.String("file", tmpName), zap.Int("resources", len(res.items)))
	return nil
}

// Passthrough stores ready EPUB payload (books distributed as single file)
// at outputPath.
func Passthrough(payload, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return common.NewError(common.ErrorKindGeneration, "epub", fmt.Errorf("unable to create output directory: %w", err))
	}
	log.Named("epub").Info("Storing EPUB payload", zap.String("output", outputPath))

	var err error
	if cfg.FixZip {
		if err = copyZipWithoutDataDescriptors(payload, outputPath); err != nil {
			// payload is not necessarily a well formed archive, keep it as is
			log.Debug("Unable to rewrite payload, copying", zap.Error(err))
			err = copyFile(payload, outputPath)
		}
	} else {
		err = copyFile(payload, outputPath)
	}
	if err != nil {
		os.Remove(outputPath)
		return common.NewError(common.ErrorKindGeneration, "epub", err)
	}
	return nil
}

func copyZipWithoutDataDescriptors(from, to string) error {
	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		if err := w.CopyFile(file); err != nil {
			w.Close()
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize target file (%s): %w", to, err)
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeContainer(zw *zip.Writer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return writeXMLToZip(zw, "META-INF/container.xml", doc)
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
