package services

import "errors"

var (
	ErrDirectoryNotFound       = errors.New("input directory not found")
	ErrInvalidInputPath        = errors.New("invalid path for input PDF file")
	ErrNotAPDF                 = errors.New("input file is not a PDF")
	ErrExecutableNotFound      = errors.New("no GhostScript executable was found on path")
	ErrNoPDFFiles              = errors.New("no PDF files to merge")
	ErrMergeFailure            = errors.New("merge failed")
	ErrCompressionFailed       = errors.New("compression failed")
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	ErrPublishFailed           = errors.New("publish failed")
)
