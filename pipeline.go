package stci

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const extractWorkers = 10

// Extractor converts every STI container below a directory tree into
// PNG files written alongside the originals: one per truecolor image
// or composed canvas, plus one per frame for multi-frame containers.
type Extractor struct {
	logger *log.Logger
}

// NewExtractor returns an Extractor logging progress to logger.
func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) findFiles(ctx context.Context, base string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(file), ".sti") {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc
}

func writePNG(file string, m image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, m)
}

func (e *Extractor) extractFile(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	sti, err := Load(f)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	base := strings.TrimSuffix(file, filepath.Ext(file))

	if sti.Truecolor != nil {
		e.logger.Printf("extracting %q, truecolor\n", file)
		return writePNG(base+".png", sti.Truecolor.Image)
	}

	e.logger.Printf("extracting %q, %d frame(s)\n", file, len(sti.Indexed.SubImages))

	if err := writePNG(base+".png", sti.Indexed.Canvas()); err != nil {
		return err
	}
	if len(sti.Indexed.SubImages) > 1 {
		for i, s := range sti.Indexed.SubImages {
			if err := writePNG(fmt.Sprintf("%s.%d.png", base, i), s.Image(sti.Indexed.Palette)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Extractor) fileWorker(in <-chan string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := e.extractFile(file); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc
}

func waitForPipeline(errs ...<-chan error) error {
	for err := range mergeErrors(errs...) {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// ExtractDir walks path and extracts every STI file found, converting
// up to ten files concurrently. Each decode session owns its buffers
// so the workers need no coordination.
func (e *Extractor) ExtractDir(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files, errc := e.findFiles(ctx, dir)

	errcList := []<-chan error{errc}
	for i := 0; i < extractWorkers; i++ {
		errcList = append(errcList, e.fileWorker(files))
	}

	return waitForPipeline(errcList...)
}
