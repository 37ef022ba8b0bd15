package history

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"taxhist/internal/backends"
	"taxhist/internal/errors"
	"taxhist/internal/logging"
	"taxhist/internal/taxonomy"
)

// Batch is the result of processing one range of commits.
type Batch struct {
	// Entries are newest-first and already noise-filtered.
	Entries []HistoryEntry
	// Initial is the oldest non-empty snapshot in the range, if any.
	Initial *InitialSnapshot
	// Examined counts relevant commits listed for the range.
	Examined int
	// Oldest is the hash of the oldest commit listed, or "" when none were.
	Oldest string
}

// Builder runs the walk, extract, diff and filter pipeline.
type Builder struct {
	walker      *CommitWalker
	extractor   *SnapshotExtractor
	noiseWindow int
	logger      *logging.Logger
}

// NewBuilder wires the pipeline stages together.
func NewBuilder(walker *CommitWalker, extractor *SnapshotExtractor, noiseWindow int, logger *logging.Logger) *Builder {
	return &Builder{
		walker:      walker,
		extractor:   extractor,
		noiseWindow: noiseWindow,
		logger:      logger.WithFields(map[string]interface{}{"component": "builder"}),
	}
}

// Build processes every relevant commit behind olderThan ("" for the whole
// history).
func (b *Builder) Build(ctx context.Context, olderThan string) (*Batch, error) {
	ctx, span := tracer.Start(ctx, "Builder.Build")
	span.SetAttributes(attribute.String("olderThan", olderThan))
	defer span.End()

	commits, err := b.walker.ListCommits(ctx, olderThan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	batch, err := b.BuildFromCommits(ctx, commits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("commits.examined", batch.Examined),
		attribute.Int("commits.with_changes", len(batch.Entries)),
	)
	return batch, nil
}

// BuildFromCommits processes commits given newest-first. The oldest non-empty
// snapshot becomes the initial record and every later snapshot is diffed
// against its predecessor. Commits whose catalog cannot be parsed, or whose
// catalog is empty, are skipped without replacing the predecessor.
func (b *Builder) BuildFromCommits(ctx context.Context, commits []backends.Commit) (*Batch, error) {
	defer b.extractor.Flush()

	batch := &Batch{Entries: []HistoryEntry{}, Examined: len(commits)}
	if len(commits) == 0 {
		return batch, nil
	}
	batch.Oldest = commits[len(commits)-1].Hash

	var prev taxonomy.Snapshot
	chronological := make([]HistoryEntry, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		commit := commits[i]

		snap, err := b.extractor.Snapshot(ctx, commit.Hash)
		if err != nil {
			if errors.CodeOf(err) == errors.ParseFailed {
				b.logger.Warn("Skipping commit with unparseable catalog", map[string]interface{}{
					"commit": commit.ShortHash(),
					"error":  err.Error(),
				})
				continue
			}
			return nil, err
		}

		if len(snap) == 0 {
			b.logger.Debug("Skipping commit with empty catalog", map[string]interface{}{
				"commit": commit.ShortHash(),
			})
			continue
		}

		if prev == nil {
			batch.Initial = newInitialSnapshot(commit, snap)
			prev = snap
			continue
		}

		if changes := Diff(prev, snap); len(changes) > 0 {
			chronological = append(chronological, newHistoryEntry(commit, changes))
		}
		prev = snap
	}

	filtered := FilterNoise(chronological, b.noiseWindow)
	for i := len(filtered) - 1; i >= 0; i-- {
		batch.Entries = append(batch.Entries, filtered[i])
	}

	b.logger.Info("History batch built", map[string]interface{}{
		"examined":       batch.Examined,
		"withChanges":    len(chronological),
		"afterFiltering": len(batch.Entries),
	})
	return batch, nil
}
