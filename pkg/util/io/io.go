package io

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// UnknownSize is what object stores expect for a stream of unknown length.
const UnknownSize int64 = -1

func TryGetSize(r io.Reader) (int64, error) {
	switch f := r.(type) {
	case *bytes.Reader:
		return int64(f.Len()), nil
	case *strings.Reader:
		return int64(f.Len()), nil
	case *os.File:
		filestat, err := f.Stat()
		if err != nil {
			return UnknownSize, errors.Wrap(err, "stat file")
		}
		if !filestat.Mode().IsRegular() {
			return UnknownSize, errors.Errorf("not a regular file: %s", f.Name())
		}
		return filestat.Size(), nil
	}

	return UnknownSize, errors.Errorf("unsupported type of io.Reader: %T", r)
}
