package domain

import "strings"

// ArchiveSuffix marks entries that are unpacked after download.
const ArchiveSuffix = ".tgz"

// ContentKind classifies what happens to an entry after it is downloaded.
type ContentKind string

const (
	KindRaw     ContentKind = "raw"
	KindTarGzip ContentKind = "tar.gz"
)

// KindOf derives the content kind from a file name.
func KindOf(name string) ContentKind {
	if strings.HasSuffix(name, ArchiveSuffix) {
		return KindTarGzip
	}
	return KindRaw
}

// IsArchive reports whether entries of this kind are unpacked.
func (k ContentKind) IsArchive() bool {
	return k == KindTarGzip
}

// DatasetEntry is one named, URL-addressed file to fetch.
type DatasetEntry struct {
	Name string
	URL  string
	Kind ContentKind
}

// NewEntry builds an entry, deriving its kind once from the name.
func NewEntry(name, url string) DatasetEntry {
	return DatasetEntry{Name: name, URL: url, Kind: KindOf(name)}
}

// BatchRequest is the input to a single batch run.
type BatchRequest struct {
	Entries        []DatasetEntry
	DestinationDir string
	Force          bool
}
