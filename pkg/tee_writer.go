package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// TeeWriter copies every write to all of its writers. A failing writer does not keep
// the data from the others, its error is returned combined with any other failures.
type TeeWriter struct {
	writers []io.Writer
}

func NewTeeWriter(writers ...io.Writer) *TeeWriter {
	return &TeeWriter{
		writers: writers,
	}
}

func (tw *TeeWriter) Write(p []byte) (int, error) {
	var err error
	succeeded := 0
	for _, w := range tw.writers {
		if _, werr := w.Write(p); werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		succeeded++
	}

	if succeeded == 0 && len(tw.writers) > 0 {
		return 0, err
	}
	return len(p), err
}
