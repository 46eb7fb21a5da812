package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"jrr/archive"
	"jrr/book"
	"jrr/common"
	"jrr/config"
	"jrr/content"
	"jrr/convert/audio"
	"jrr/convert/epub"
	"jrr/convert/pdf"
	"jrr/decrypt"
)

// Progress is notified about extracted archive entries.
type Progress interface {
	ChangeMax(int)
	Add(int) error
}

// Pipeline processes downloaded books one at a time: decrypts archive found
// in work directory, generates final artifact in output directory and removes
// intermediate files on success.
type Pipeline struct {
	// WorkDir keeps downloaded archives (<id>.zip, or <id>.zip.body for
	// books with header) and extraction folders.
	WorkDir string
	OutDir  string
	// Token is session access token, only needed for books with header.
	Token            string
	Overwrite        bool
	KeepIntermediate bool

	Cfg      *config.Config
	Log      *zap.Logger
	Report   *config.Report
	Progress Progress
}

// NewPipeline returns pipeline configured from cfg.
func NewPipeline(cfg *config.Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		WorkDir:          cfg.Library.ResolveWorkDir(),
		OutDir:           cfg.Library.OutputDir,
		KeepIntermediate: cfg.Library.KeepIntermediate,
		Cfg:              cfg,
		Log:              log,
	}
}

// ArchivePath returns location of book archive in work directory.
func (p *Pipeline) ArchivePath(b *book.Book) string {
	return filepath.Join(p.WorkDir, b.ID+".zip")
}

// BodyPath returns location of downloaded body for books with header.
func (p *Pipeline) BodyPath(b *book.Book) string {
	return p.ArchivePath(b) + ".body"
}

// ExtractDir returns extraction folder of the book.
func (p *Pipeline) ExtractDir(b *book.Book) string {
	return filepath.Join(p.WorkDir, b.ID)
}

// DecryptArchive extracts downloaded book archive decrypting entries as they
// are written and returns number of extracted files. Books with header have
// their archive and key restored first. Empty download is removed so it
// could be downloaded again.
func (p *Pipeline) DecryptArchive(ctx context.Context, b *book.Book) (int, error) {
	n, _, err := p.decryptArchive(ctx, b)
	return n, err
}

func (p *Pipeline) decryptArchive(ctx context.Context, b *book.Book) (int, content.Info, error) {
	log := p.Log.Named("decrypt").With(zap.String("book", b.ID))
	src := p.ArchivePath(b)

	if b.UsesHeaderFlow() {
		if err := p.combine(ctx, b, log); err != nil {
			return 0, content.Info{}, err
		}
	}
	if err := removeEmpty(src); err != nil {
		return 0, content.Info{}, err
	}

	// format version decides how entries are decrypted, it has to be known
	// before extraction starts
	info, err := content.ReadInfo(src)
	if err != nil {
		return 0, info, common.NewError(common.ErrorKindExtraction, "read info", err)
	}
	log.Debug("Archive info", zap.Int("format", info.FormatVersion), zap.Stringer("type", info.Type), zap.Int("chapters", info.Chapters))

	if p.Progress != nil {
		p.Progress.ChangeMax(countEntries(src))
	}

	dir := p.ExtractDir(b)
	n, err := archive.Extract(ctx, src, dir, func(e archive.Entry) error {
		if p.Progress != nil {
			defer p.Progress.Add(1)
		}
		if !e.IsFile {
			return nil
		}
		kind := decrypt.Classify(e.Name, info.FormatVersion)
		if kind == common.EntryKindSkip {
			return nil
		}
		return decrypt.Entry(e.Path, kind, b.Key, log)
	})
	if err != nil {
		if errors.Is(err, common.ErrCorruptArchive) {
			os.Remove(src)
		}
		return n, info, err
	}
	log.Info("Archive decrypted", zap.Int("entries", n), zap.String("dir", dir))
	return n, info, nil
}

// combine restores archive and key of the book from downloaded body. When
// body is gone archive restored by previous run is used with the key the book
// already carries.
func (p *Pipeline) combine(ctx context.Context, b *book.Book, log *zap.Logger) error {
	body := p.BodyPath(b)
	if _, err := os.Stat(body); errors.Is(err, os.ErrNotExist) {
		if _, err := os.Stat(p.ArchivePath(b)); err == nil {
			log.Debug("Using previously restored archive")
			return nil
		}
	}
	if err := removeEmpty(body); err != nil {
		return err
	}

	key, err := decrypt.Combine(ctx, body, b.Header, p.Token, p.ArchivePath(b))
	if err != nil {
		return err
	}
	b.Key = key
	log.Debug("Book key restored from header")
	return nil
}

// removeEmpty reports zero length download as corrupt archive removing it.
func removeEmpty(name string) error {
	fi, err := os.Stat(name)
	if err != nil {
		return common.NewError(common.ErrorKindExtraction, "stat archive", err)
	}
	if fi.Size() > 0 {
		return nil
	}
	err = fmt.Errorf("archive %q is empty", name)
	if er := os.Remove(name); er != nil {
		err = multierr.Append(err, er)
	}
	return common.NewError(common.ErrorKindCorruptArchive, "", err)
}

func countEntries(name string) int {
	n := 0
	_ = archive.Walk(name, "", func(_ string, _ *zip.File) error {
		n++
		return nil
	})
	return n
}

// Generate produces final artifact for downloaded book and returns its
// location, which is also recorded in the book. Intermediate files are
// removed only on success.
func (p *Pipeline) Generate(ctx context.Context, b *book.Book) (outputName string, rerr error) {
	log := p.Log.Named("pipeline").With(zap.String("book", b.ID))

	log.Info("Generation starting", zap.String("title", b.Title))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Generation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = common.NewError(common.ErrorKindGeneration, "", fmt.Errorf("panic: %v", r))
		} else if rerr == nil {
			log.Info("Generation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	_, info, err := p.decryptArchive(ctx, b)
	if err != nil {
		return "", err
	}
	dir := p.ExtractDir(b)
	p.storeReport(b, dir, log)

	t := info.Type
	if t == common.BookTypeUnknown {
		t = b.Type
	}
	if !t.Supported() {
		return "", common.NewError(common.ErrorKindUnsupportedFormat, "", fmt.Errorf("book type %q", t))
	}
	lang := info.Lang(p.Cfg.Document.DefaultLanguage)

	outputName = buildOutputPath(b, t, lang, p.OutDir, &p.Cfg.Document, log)
	if err := p.prepareOutput(outputName, log); err != nil {
		return "", err
	}

	switch t {
	case common.BookTypePdf:
		err = pdf.Generate(ctx, dir, outputName, log)
	case common.BookTypeEpub:
		err = p.generateEPUB(ctx, b, info, dir, outputName, log)
	case common.BookTypeMp3:
		err = audio.Generate(ctx, b, info, dir, outputName, &p.Cfg.Audio, log)
	}
	if err != nil {
		return "", err
	}

	if p.Report != nil {
		p.Report.Store(fmt.Sprintf("result-%s%s", b.ID, t.Ext()), outputName)
	}
	b.MarkDownloaded(outputName, time.Now())

	if !p.KeepIntermediate {
		if err := p.Cleanup(b); err != nil {
			log.Warn("Unable to remove intermediate files", zap.Error(err))
		}
	}
	return outputName, nil
}

func (p *Pipeline) generateEPUB(ctx context.Context, b *book.Book, info content.Info, dir, outputName string, log *zap.Logger) error {
	payload := content.Payload(dir)
	if info.Chapters == 0 {
		if _, err := os.Stat(payload); err == nil {
			if n, _ := content.CountChapters(dir); n == 0 {
				return epub.Passthrough(payload, outputName, &p.Cfg.Document, log)
			}
		}
	}

	c, err := content.Prepare(ctx, b, info, dir, content.Options{
		DefaultLanguage: p.Cfg.Document.DefaultLanguage,
		Copyrights:      p.Cfg.Document.Copyrights,
	}, log)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return common.NewError(common.ErrorKindGeneration, "prepare content", err)
	}
	if p.Report != nil {
		p.Report.StoreData(fmt.Sprintf("content-%s.txt", b.ID), []byte(c.String()))
	}
	return epub.Generate(ctx, c, outputName, &p.Cfg.Document, log)
}

// prepareOutput makes sure final artifact could be written.
func (p *Pipeline) prepareOutput(outputName string, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !p.Overwrite {
			return common.NewError(common.ErrorKindGeneration, "", fmt.Errorf("output already exists: %s", outputName))
		}
		log.Warn("Overwriting existing output", zap.String("output", outputName))
		if err = os.RemoveAll(outputName); err != nil {
			return common.NewError(common.ErrorKindGeneration, "", err)
		}
	} else if !os.IsNotExist(err) {
		return common.NewError(common.ErrorKindGeneration, "", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return common.NewError(common.ErrorKindGeneration, "", fmt.Errorf("unable to create output directory: %w", err))
	}
	return nil
}

// storeReport snapshots extraction folder so it could be examined after
// cleanup.
func (p *Pipeline) storeReport(b *book.Book, dir string, log *zap.Logger) {
	if p.Report == nil {
		return
	}
	if err := p.Report.StoreCopy("book-"+b.ID, dir); err != nil {
		log.Debug("Unable to store extracted book in report", zap.Error(err))
	}
}

// Cleanup removes downloaded archive and everything produced from it in work
// directory.
func (p *Pipeline) Cleanup(b *book.Book) (err error) {
	dir := p.ExtractDir(b)
	for _, name := range []string{p.ArchivePath(b), p.BodyPath(b), dir, dir + ".epub", dir + ".audio"} {
		if er := os.RemoveAll(name); er != nil {
			err = multierr.Append(err, er)
		}
	}
	return err
}
