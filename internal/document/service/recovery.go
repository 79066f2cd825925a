package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/codec"
	"github.com/gogotex/docstore/internal/document/index"
	"github.com/gogotex/docstore/internal/document/repository"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
)

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	Documents    int
	NextID       uint64
	PayloadBytes int64
	Skipped      []SkippedRecord
}

// SkippedRecord is a stored record recovery could not use.
type SkippedRecord struct {
	Key    string
	Reason string
}

// recoverIndex reads every record in repo into a fresh index. Records that do
// not decode are skipped and reported; a storage read failure aborts.
func recoverIndex(ctx context.Context, repo repository.Repository, cacheSize, workers int) (*index.Index, *RecoveryReport, error) {
	keys, err := repo.Keys(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("recovery: list keys: %w", err)
	}

	var (
		docs    = make([]*document.Document, len(keys))
		skipMu  sync.Mutex
		skipped []SkippedRecord
	)
	skip := func(key, reason string) {
		logger.Warnf("recovery: skipping record %s: %s", key, reason)
		metrics.RecoverySkipped.Inc()
		skipMu.Lock()
		skipped = append(skipped, SkippedRecord{Key: key, Reason: reason})
		skipMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range keys {
		i, id := i, id
		g.Go(func() error {
			key := repository.Key(id)
			data, err := repo.Get(gctx, id)
			if err != nil {
				return fmt.Errorf("recovery: read %s: %w", key, err)
			}
			d, err := codec.Decode(key, data)
			if err != nil {
				skip(key, err.Error())
				return nil
			}
			if d.ID != id {
				skip(key, fmt.Sprintf("record holds id %d", d.ID))
				return nil
			}
			docs[i] = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	idx, err := index.New(cacheSize)
	if err != nil {
		return nil, nil, err
	}
	report := &RecoveryReport{}
	// keys are ascending, so this inserts in creation order
	for _, d := range docs {
		if d == nil {
			continue
		}
		report.PayloadBytes += int64(len(*d.Payload))
		idx.Put(*d)
	}
	report.Documents = idx.Len()
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Key < skipped[j].Key })
	report.Skipped = skipped
	return idx, report, nil
}
