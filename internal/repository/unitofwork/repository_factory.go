package unitofwork

import "context"

// RepositoryFactory hands out a fresh UnitOfWork per request, sweep batch item or ingestion job.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
