// Package changelog persists run reports so operators can audit what a
// past import did to the remote system.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/ipamtools/bamsync/metrics"
	"github.com/ipamtools/bamsync/model"
)

const runPrefix = "run:"

type Store interface {
	Record(ctx context.Context, report model.RunReport) error
	Runs(ctx context.Context) ([]model.RunReport, error)
	LastRun(ctx context.Context) (model.RunReport, bool, error)
	Close() error
}

type badgerStore struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, metrics *metrics.Metrics) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	s := &badgerStore{db: db, metrics: metrics}
	return s, nil
}

func (s *badgerStore) Record(ctx context.Context, report model.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		s.metrics.IncChangelogRequest("update", false)
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+report.RunID), data)
	})
	s.metrics.IncChangelogRequest("update", err == nil)
	return err
}

func (s *badgerStore) Runs(ctx context.Context) ([]model.RunReport, error) {
	var runs []model.RunReport

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var report model.RunReport
				if err := json.Unmarshal(val, &report); err != nil {
					return err
				}
				runs = append(runs, report)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.IncChangelogRequest("read", err == nil)
	return runs, err
}

func (s *badgerStore) LastRun(ctx context.Context) (model.RunReport, bool, error) {
	runs, err := s.Runs(ctx)
	if err != nil || len(runs) == 0 {
		return model.RunReport{}, false, err
	}

	last := runs[0]
	for _, run := range runs[1:] {
		if run.Started.After(last.Started) {
			last = run
		}
	}
	return last, true, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
