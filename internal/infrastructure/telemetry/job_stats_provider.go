package telemetry

import (
	"context"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"gorm.io/gorm"
)

// GormJobStatsProvider implements JobStatsProvider using GORM.
type GormJobStatsProvider struct {
	db *gorm.DB
}

// NewGormJobStatsProvider creates a provider backed by the given database.
func NewGormJobStatsProvider(db *gorm.DB) *GormJobStatsProvider {
	return &GormJobStatsProvider{db: db}
}

// CountByStatus returns the number of import jobs per status.
func (p *GormJobStatsProvider) CountByStatus(ctx context.Context) (map[importjob.Status]int64, error) {
	var rows []struct {
		Status importjob.Status
		Count  int64
	}

	err := p.db.WithContext(ctx).
		Table("import_jobs").
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[importjob.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
