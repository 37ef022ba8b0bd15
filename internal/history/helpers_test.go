package history

import (
	"taxhist/internal/catalog"
	"taxhist/internal/logging"
)

func newTestBuilder(repo *fakeRepo, window int) (*Builder, *SnapshotExtractor) {
	logger := logging.NewDiscardLogger()
	extractor := NewSnapshotExtractor(repo, catalog.NewXMLParser(), ExtractorOptions{
		ConsolidatedPath: catalogPath,
		FragmentPrefix:   "source/",
		FragmentSuffix:   ".xml",
		Concurrency:      4,
	}, logger)
	walker := NewCommitWalker(repo, trackedPaths, logger)
	return NewBuilder(walker, extractor, window, logger), extractor
}

func changeNames(e HistoryEntry) []string {
	names := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		names[i] = string(c.Kind) + " " + c.Name
	}
	return names
}
