package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"normalizer/internal/progress"
	"normalizer/internal/tools"
)

const logProgressBucket = 10

// barObserver draws one terminal progress bar per tool run. The bar is
// created on Start because the total is only known once the tool reports it.
type barObserver struct {
	writer io.Writer
	label  string
	bar    *progressbar.ProgressBar
}

func (b *barObserver) Start(total int) {
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.writer),
		progressbar.OptionSetDescription(b.label),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(b.writer)
		}),
	)
}

func (b *barObserver) Update(r progress.Reading) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Set(r.Elapsed)
}

func (b *barObserver) Finish() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
}

// observerFactory draws bars on an interactive writer and falls back to
// sampled log lines otherwise.
func observerFactory(writer io.Writer, logger *slog.Logger) tools.ObserverFactory {
	if shouldColorize(writer) {
		return func(label string) progress.Observer {
			return &barObserver{writer: writer, label: label}
		}
	}
	return func(label string) progress.Observer {
		return progress.NewLogObserver(logger, label, logProgressBucket)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
