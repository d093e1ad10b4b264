package entity

import (
	"errors"
)

var (
	ErrCaptureTooSmall       = errors.New("capture file too small")
	ErrUnknownMagic          = errors.New("unrecognized magic number")
	ErrNotText               = errors.New("file is not valid UTF-8 text")
	ErrNoUsableFiles         = errors.New("no usable files after filtering")
	ErrAnalyzerUnavailable   = errors.New("all analyzer endpoints unavailable")
	ErrAnalyzerEmptyResponse = errors.New("empty analyzer response")
	ErrNoEmbeddedJSON        = errors.New("no embedded JSON object in analyzer response")
	ErrArchiveTooDeep        = errors.New("nested archive depth exceeded")
	ErrTooManyEntries        = errors.New("too many archive entries")
	ErrEntryTooLarge         = errors.New("archive entry too large")
	ErrDecodedSizeExceeded   = errors.New("decoded size limit exceeded")
)
