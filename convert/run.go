package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"jrr/book"
	"jrr/config"
	"jrr/decrypt"
	"jrr/settings"
	"jrr/state"
)

// Run is "generate" command: produces final book from downloaded archive.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("generate")

	b, fromStore, err := resolveBook(ctx, cmd, env)
	if err != nil {
		return err
	}
	p, err := newPipeline(ctx, cmd, env, b)
	if err != nil {
		return err
	}
	if err := stageDownload(cmd.Args().Get(0), p, b, log); err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("book", b.ID), zap.String("destination", p.OutDir))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	out, err := p.Generate(ctx, b)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, out)

	// remember where book is and which key opens it
	if fromStore {
		if err := settings.UpdateBook(ctx, env.Store, b); err != nil {
			log.Warn("Unable to update cached library", zap.Error(err))
		}
		return nil
	}
	if err := saveSnapshot(cmd.String("book"), b); err != nil {
		log.Warn("Unable to update book snapshot", zap.Error(err))
	}
	return nil
}

func saveSnapshot(name string, b *book.Book) error {
	data, err := b.Snapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}

// Decrypt is "decrypt" command: extracts and decrypts downloaded archive
// leaving results in work directory.
func Decrypt(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("decrypt")

	b, _, err := resolveBook(ctx, cmd, env)
	if err != nil {
		return err
	}
	p, err := newPipeline(ctx, cmd, env, b)
	if err != nil {
		return err
	}
	if err := stageDownload(cmd.Args().Get(0), p, b, log); err != nil {
		return err
	}

	n, err := p.DecryptArchive(ctx, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%d %s\n", n, p.ExtractDir(b))
	return nil
}

// Combine is "combine" command: restores book archive from downloaded body
// and encrypted header printing recovered book key.
func Combine(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("combine")

	body, out := cmd.Args().Get(0), cmd.Args().Get(1)
	if body == "" || out == "" {
		return errors.New("body and output archive have to be specified")
	}
	header := cmd.String("header")
	if header == "" {
		return errors.New("encrypted header has to be specified")
	}
	token, err := env.ResolveToken(ctx)
	if err != nil {
		return err
	}

	key, err := decrypt.Combine(ctx, body, header, token, out)
	if err != nil {
		return err
	}
	log.Info("Archive restored", zap.String("archive", out))
	fmt.Fprintln(cmd.Root().Writer, key.Hex())
	return nil
}

// ListBooks is "books" command: lists cached library, optionally replacing it
// with store listing read from file first.
func ListBooks(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("books")

	store, err := env.OpenStore()
	if err != nil {
		return err
	}

	if name := cmd.String("import"); name != "" {
		items, err := readListing(name)
		if err != nil {
			return err
		}
		if err := settings.SaveLibrary(ctx, store, items); err != nil {
			return fmt.Errorf("unable to cache library: %w", err)
		}
		log.Info("Library imported", zap.Int("books", len(items)))
	}

	l, err := settings.LoadLibrary(ctx, store)
	if err != nil {
		return err
	}
	if !l.Fresh(env.Cfg.Library.CacheTTL, time.Now()) {
		log.Warn("Cached library is stale or absent", zap.Time("cached", l.CachedAt))
	}
	for i := range l.Items {
		fmt.Fprintln(cmd.Root().Writer, l.Items[i].DisplayName())
	}
	return nil
}

// Logout is "logout" command: forgets session and cached library.
func Logout(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	store, err := env.OpenStore()
	if err != nil {
		return err
	}
	if cmd.Bool("all") {
		return store.Clear(ctx)
	}
	return store.Clear(ctx, settings.KeyToken, settings.KeyEmail)
}

// resolveBook finds book descriptor either in cached library (--id) or in
// snapshot file (--book). Second result tells if book came from cache.
func resolveBook(ctx context.Context, cmd *cli.Command, env *state.LocalEnv) (*book.Book, bool, error) {
	if name := cmd.String("book"); name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, false, fmt.Errorf("unable to read book snapshot: %w", err)
		}
		b, err := book.FromSnapshot(data)
		if err != nil {
			return nil, false, err
		}
		return b, false, nil
	}

	id := cmd.String("id")
	if id == "" {
		return nil, false, errors.New("book has to be specified either by id or by snapshot")
	}
	store, err := env.OpenStore()
	if err != nil {
		return nil, false, err
	}
	l, err := settings.LoadLibrary(ctx, store)
	if err != nil {
		return nil, false, err
	}
	b, ok := l.Find(id)
	if !ok {
		return nil, false, fmt.Errorf("book %q is not in cached library", id)
	}
	return b, true, nil
}

func newPipeline(ctx context.Context, cmd *cli.Command, env *state.LocalEnv, b *book.Book) (*Pipeline, error) {
	p := NewPipeline(env.Cfg, env.Log)
	p.Report = env.Rpt
	p.Overwrite = env.Overwrite || cmd.Bool("overwrite")
	if dst := cmd.Args().Get(1); dst != "" {
		p.OutDir = dst
	}
	if cmd.Bool("keep") {
		p.KeepIntermediate = true
	}

	if b.UsesHeaderFlow() {
		if token := cmd.String("token"); token != "" {
			env.Token = token
		}
		token, err := env.ResolveToken(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, errors.New("book requires access token, none is available")
		}
		p.Token = token
	}

	if config.IsTerminal(os.Stdout) {
		p.Progress = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stdout),
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p, nil
}

// stageDownload places downloaded file where pipeline expects it. Empty src
// means download is already in work directory, directory src is where
// download was saved under its URL name.
func stageDownload(src string, p *Pipeline, b *book.Book, log *zap.Logger) (err error) {
	if src == "" {
		return nil
	}
	if fi, err := os.Stat(src); err == nil && fi.IsDir() {
		name := b.URLFilename()
		if name == "" {
			return fmt.Errorf("book %s has no download URL, unable to find download in %s", b.ID, src)
		}
		src = filepath.Join(src, name)
	}
	dst := p.ArchivePath(b)
	if b.UsesHeaderFlow() {
		dst = p.BodyPath(b)
	}
	if abs, err := filepath.Abs(src); err == nil && abs == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create work directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open download: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to stage download: %w", err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("unable to stage download: %w", err)
	}
	log.Debug("Download staged", zap.String("from", src), zap.String("to", dst))
	return nil
}

func readListing(name string) ([]book.Book, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unable to read listing: %w", err)
	}
	var listing []book.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("unable to parse listing: %w", err)
	}
	items := make([]book.Book, 0, len(listing))
	for _, l := range listing {
		items = append(items, *book.FromListing(l))
	}
	return items, nil
}
