package drapto

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"spool/internal/fileutil"
	"spool/internal/services"
)

// encodeFunc runs one library encode into outputDir. Tests replace it.
var encodeFunc = func(ctx context.Context, inputPath, outputDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}
	_, err = encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep)
	return err
}

// Engine runs AV1 encodes in-process through the Drapto library.
type Engine struct{}

// NewEngine constructs an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Encode writes an AV1 encode of inputPath to outputPath. Drapto always names
// its output after the input stem inside a directory, so the encode runs in a
// scratch directory beside outputPath and the result is moved into place.
func (e *Engine) Encode(ctx context.Context, inputPath, outputPath string, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, "drapto", "encode", "input path required", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return services.Wrap(services.ErrValidation, "drapto", "encode", "output path required", nil)
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), ".spool-drapto-")
	if err != nil {
		return services.Wrap(services.ErrLaunch, "drapto", "scratch dir", "", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	var rep draptolib.Reporter = discardReporter{}
	if progress != nil {
		rep = newReporter(progress)
	}
	if err := encodeFunc(ctx, inputPath, scratch, rep); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("drapto interrupted: %w", ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "drapto", "encode", "", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("drapto interrupted: %w", ctxErr)
	}

	produced := filepath.Join(scratch, stem(inputPath)+".mkv")
	if _, err := fileutil.RequireNonEmpty(produced); err != nil {
		return services.Wrap(services.ErrExternalTool, "drapto", "encode", "no output produced", err)
	}
	if err := fileutil.MoveFile(produced, outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "drapto", "finalize", "", err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}
