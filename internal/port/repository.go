package port

import (
	"github.com/lordseriouspig/nova-shell/internal/domain/repository"
)

// DownloadRecordRepository is an alias to domain repository interface
type DownloadRecordRepository = repository.DownloadRecordRepository

// Store is an alias to domain repository interface
type Store = repository.Store
