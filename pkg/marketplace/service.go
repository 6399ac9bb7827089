// Package marketplace implements the catalog operations exposed over HTTP:
// creating, searching, downloading, rating and forking skills, managing
// clients and projects, and uploading bundles. File contents live in a
// filestore.Store; metadata lives in the relational index.
package marketplace

import (
	"context"

	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/store"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// Service ties the index and the file store together.
type Service struct {
	store   *store.Store
	files   filestore.Store
	uploads *upload.Orchestrator
}

// New creates a service over an opened index and a file store.
func New(st *store.Store, files filestore.Store) *Service {
	s := &Service{store: st, files: files}
	s.uploads = upload.NewOrchestrator(files, uploadIndex{st}, upload.WithPrecheck(s.checkUploadPath))
	return s
}

// Files returns the backing file store.
func (s *Service) Files() filestore.Store {
	return s.files
}

// uploadIndex adapts the store's transactions to the orchestrator.
type uploadIndex struct {
	store *store.Store
}

func (i uploadIndex) WithinTx(ctx context.Context, fn func(upload.Inserter) error) error {
	return i.store.InTx(ctx, func(tx *store.Tx) error {
		return fn(tx)
	})
}

// checkUploadPath rejects batch items whose storage path is already indexed.
func (s *Service) checkUploadPath(ctx context.Context, item upload.ValidatedItem) error {
	return s.ensurePathFree(ctx, item.Kind, item.Name, item.StoragePath)
}
