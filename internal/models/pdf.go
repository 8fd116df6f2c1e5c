package models

// SourceFile is a PDF discovered on disk. Name is the bookmark title.
type SourceFile struct {
	Path string
	Name string
}

// FileSet is the ordered list of PDFs selected for merging.
// Its order is the page order and the bookmark order of the output.
type FileSet []SourceFile

// Names returns the file names in order.
func (fs FileSet) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Bookmark is a top-level outline entry of a merged document.
type Bookmark struct {
	Title    string
	PageFrom int
}

// MergeResult describes a merged document written to Output.
type MergeResult struct {
	Output    string
	Files     FileSet
	PageCount int
	Bookmarks []Bookmark
}

// CompressionResult holds the size statistics of one compression run.
type CompressionResult struct {
	Input        string
	Output       string
	Level        int
	Preset       string
	OriginalSize int64
	FinalSize    int64
}

// Ratio is 1 - final/original. It is 0 when the original size is unknown.
func (cr *CompressionResult) Ratio() float64 {
	if cr.OriginalSize <= 0 {
		return 0
	}
	return 1 - float64(cr.FinalSize)/float64(cr.OriginalSize)
}

// FinalMegabytes reports the compressed size in decimal megabytes.
func (cr *CompressionResult) FinalMegabytes() float64 {
	return float64(cr.FinalSize) / 1000000
}
