package history

import (
	"context"
	stderrors "errors"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"taxhist/internal/backends"
	"taxhist/internal/catalog"
	"taxhist/internal/errors"
	"taxhist/internal/logging"
	"taxhist/internal/paths"
	"taxhist/internal/taxonomy"
)

// ExtractorOptions locates the catalog inside the repository.
type ExtractorOptions struct {
	ConsolidatedPath string
	FragmentPrefix   string
	FragmentSuffix   string
	// Concurrency bounds parallel fragment reads. Zero means 8.
	Concurrency int
}

// SnapshotExtractor rebuilds the catalog at a commit. Results are memoized by
// commit hash until Flush is called.
type SnapshotExtractor struct {
	repo   backends.Repository
	parser catalog.Parser
	opts   ExtractorOptions
	memo   *gocache.Cache
	logger *logging.Logger
}

// NewSnapshotExtractor creates an extractor reading through repo.
func NewSnapshotExtractor(repo backends.Repository, parser catalog.Parser, opts ExtractorOptions, logger *logging.Logger) *SnapshotExtractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	opts.ConsolidatedPath = paths.NormalizePath(opts.ConsolidatedPath)
	opts.FragmentPrefix = paths.NormalizePrefix(opts.FragmentPrefix)
	return &SnapshotExtractor{
		repo:   repo,
		parser: parser,
		opts:   opts,
		memo:   gocache.New(gocache.NoExpiration, 0),
		logger: logger.WithFields(map[string]interface{}{"component": "extractor"}),
	}
}

// Snapshot returns the catalog state at commit.
//
// The consolidated catalog is preferred. When it is absent, every fragment
// under the fragment prefix is parsed independently and merged in path order;
// fragments that fail to parse are skipped. A consolidated catalog that fails
// to parse yields a ParseError.
func (e *SnapshotExtractor) Snapshot(ctx context.Context, commit string) (taxonomy.Snapshot, error) {
	if cached, ok := e.memo.Get(commit); ok {
		return cached.(taxonomy.Snapshot), nil
	}

	ctx, span := tracer.Start(ctx, "SnapshotExtractor.Snapshot")
	span.SetAttributes(attribute.String("commit", commit))
	defer span.End()

	snap, source, err := e.extract(ctx, commit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("snapshot.source", source),
		attribute.Int("snapshot.entries", len(snap)),
	)

	e.memo.Set(commit, snap, gocache.NoExpiration)
	return snap, nil
}

// Flush drops all memoized snapshots.
func (e *SnapshotExtractor) Flush() {
	e.memo.Flush()
}

func (e *SnapshotExtractor) extract(ctx context.Context, commit string) (taxonomy.Snapshot, string, error) {
	exists, err := e.repo.FileExists(ctx, commit, e.opts.ConsolidatedPath)
	if err != nil {
		return nil, "", errors.NewRepositoryAccessError("Cannot check catalog", err)
	}

	if exists {
		data, err := e.repo.ReadFile(ctx, commit, e.opts.ConsolidatedPath)
		if err != nil {
			return nil, "", errors.NewRepositoryAccessError("Cannot read catalog", err)
		}
		snap, err := e.parser.ParseCatalog(data)
		if err != nil {
			return nil, "", errors.NewParseError(commit, e.opts.ConsolidatedPath, err)
		}
		return snap, "consolidated", nil
	}

	snap, err := e.fromFragments(ctx, commit)
	return snap, "fragments", err
}

func (e *SnapshotExtractor) fromFragments(ctx context.Context, commit string) (taxonomy.Snapshot, error) {
	files, err := e.repo.ListFiles(ctx, commit, e.opts.FragmentPrefix)
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot list fragments", err)
	}
	fragments := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f, e.opts.FragmentSuffix) {
			fragments = append(fragments, f)
		}
	}

	parsed := make([][]taxonomy.Entry, len(fragments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, path := range fragments {
		g.Go(func() error {
			data, err := e.repo.ReadFile(gctx, commit, path)
			if err != nil {
				if stderrors.Is(err, backends.ErrFileNotFound) {
					return nil
				}
				return errors.NewRepositoryAccessError("Cannot read fragment", err)
			}
			entries, err := e.parser.ParseFragment(data)
			if err != nil {
				e.logger.Warn("Skipping unparseable fragment", map[string]interface{}{
					"commit": commit,
					"path":   path,
					"error":  err.Error(),
				})
				return nil
			}
			parsed[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []taxonomy.Entry
	for _, entries := range parsed {
		all = append(all, entries...)
	}
	return taxonomy.NewSnapshot(all), nil
}
