// Package pdf produces PDF books. Store distributes them as single decrypted
// payload so nothing has to be converted.
package pdf

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"jrr/common"
	"jrr/content"
)

// Generate moves decrypted payload from extraction folder dir to outputPath.
func Generate(ctx context.Context, dir, outputPath string, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log = log.Named("pdf")

	src := content.Payload(dir)
	if _, err := os.Stat(src); err != nil {
		return common.NewError(common.ErrorKindGeneration, "pdf", fmt.Errorf("decrypted payload is missing: %w", err))
	}
	if !isPDF(src) {
		log.Warn("Decrypted payload does not look like PDF", zap.String("file", src))
	}

	log.Info("Storing PDF", zap.String("output", outputPath))
	if err := common.Move(src, outputPath); err != nil {
		return common.NewError(common.ErrorKindGeneration, "pdf", err)
	}
	return nil
}

func isPDF(name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return filetype.IsMIME(head[:n], "application/pdf")
}
