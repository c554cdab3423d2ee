package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"proxyfinder/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxParamsPerBatch = 32766 // SQLite's default variable limit, also safe for PostgreSQL
	insertFieldCount  = 10
	maxInsertBatch    = 1000
)

// UpdateFields are the columns a verification pass owns.
var UpdateFields = []string{"is_checked", "is_working", "latency", "updated_at", "location", "error"}

var sortColumns = map[string]string{
	"latency":    "latency",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ProxyFilter is the only query shape the engine issues. Nil fields do not constrain.
type ProxyFilter struct {
	IsWorking     *bool
	IsChecked     *bool
	UpdatedBefore *time.Time
	SortBy        string
	Descending    bool
	Limit         int
}

type ProxyStats struct {
	Total          int64
	Checked        int64
	Working        int64
	AverageLatency float64
}

type ProxyStore struct {
	db *gorm.DB
}

func NewProxyStore(db *gorm.DB) *ProxyStore {
	return &ProxyStore{db: db}
}

// InsertIfAbsent creates a record for every address not stored yet and returns how many
// were created. Existing rows keep their state.
func (s *ProxyStore) InsertIfAbsent(ctx context.Context, addresses []string) (int64, error) {
	records := make([]domain.Proxy, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		if _, exists := seen[address]; exists || address == "" {
			continue
		}
		seen[address] = struct{}{}
		records = append(records, domain.Proxy{Address: address})
	}
	if len(records) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		CreateInBatches(records, calculateBatchSize(len(records)))
	if result.Error != nil {
		return 0, fmt.Errorf("database: insert proxies: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func calculateBatchSize(count int) int {
	batch := maxParamsPerBatch / insertFieldCount
	if batch > maxInsertBatch {
		batch = maxInsertBatch
	}
	return clamp(batch, 1, count)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BulkUpdate writes fields (UpdateFields when empty) of every record in one transaction.
// Records are matched by ID, or by address when they were never loaded from the store.
// An address-matched record carries no stored latency, so a non-working one keeps the
// latency already in the table.
func (s *ProxyStore) BulkUpdate(ctx context.Context, records []*domain.Proxy, fields ...string) error {
	if len(records) == 0 {
		return nil
	}
	if len(fields) == 0 {
		fields = UpdateFields
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			query := tx.Model(record)
			selected := fields
			if record.ID == 0 {
				query = tx.Model(&domain.Proxy{}).Where("address = ?", record.Address)
				if !record.IsWorking {
					selected = withoutField(fields, "latency")
				}
			}
			if err := query.Select(selected).Updates(record).Error; err != nil {
				return fmt.Errorf("database: update proxy %s: %w", record.Address, err)
			}
		}
		return nil
	})
}

func withoutField(fields []string, name string) []string {
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if field != name {
			kept = append(kept, field)
		}
	}
	return kept
}

func (s *ProxyStore) Query(ctx context.Context, filter ProxyFilter) ([]domain.Proxy, error) {
	query, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}

	var proxies []domain.Proxy
	if err := query.Find(&proxies).Error; err != nil {
		return nil, fmt.Errorf("database: query proxies: %w", err)
	}
	return proxies, nil
}

func (s *ProxyStore) Count(ctx context.Context, filter ProxyFilter) (int64, error) {
	filter.SortBy = ""
	query, err := s.filtered(ctx, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	if filter.Limit > 0 {
		// COUNT ignores LIMIT, so count the limited subquery instead.
		if err := s.db.WithContext(ctx).Table("(?) AS limited", query.Select("id")).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("database: count proxies: %w", err)
		}
		return count, nil
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("database: count proxies: %w", err)
	}
	return count, nil
}

func (s *ProxyStore) Stats(ctx context.Context) (ProxyStats, error) {
	var stats ProxyStats
	proxies := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&domain.Proxy{})
	}

	if err := proxies().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("database: stats total: %w", err)
	}
	if err := proxies().Where("is_checked = ?", true).Count(&stats.Checked).Error; err != nil {
		return stats, fmt.Errorf("database: stats checked: %w", err)
	}
	if err := proxies().Where("is_working = ?", true).Count(&stats.Working).Error; err != nil {
		return stats, fmt.Errorf("database: stats working: %w", err)
	}

	if stats.Working > 0 {
		var avg *float64
		if err := proxies().Select("AVG(latency)").Where("is_working = ?", true).Row().Scan(&avg); err != nil {
			return stats, fmt.Errorf("database: stats latency: %w", err)
		}
		if avg != nil {
			stats.AverageLatency = *avg
		}
	}

	return stats, nil
}

func (s *ProxyStore) filtered(ctx context.Context, filter ProxyFilter) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&domain.Proxy{})

	if filter.IsWorking != nil {
		query = query.Where("is_working = ?", *filter.IsWorking)
	}
	if filter.IsChecked != nil {
		query = query.Where("is_checked = ?", *filter.IsChecked)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}

	if filter.SortBy != "" {
		column, ok := sortColumns[filter.SortBy]
		if !ok {
			return nil, fmt.Errorf("database: unsupported sort field %q", filter.SortBy)
		}
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: filter.Descending})
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: filter.Descending && filter.SortBy != ""})

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	return query, nil
}

var ErrUnknownStatus = errors.New("database: unknown status")

// FilterForStatus maps the user-facing status names to a filter.
func FilterForStatus(status string) (ProxyFilter, error) {
	yes, no := true, false

	switch status {
	case "working":
		return ProxyFilter{IsWorking: &yes, IsChecked: &yes}, nil
	case "broken":
		return ProxyFilter{IsWorking: &no, IsChecked: &yes}, nil
	case "unchecked":
		return ProxyFilter{IsChecked: &no}, nil
	case "all", "":
		return ProxyFilter{}, nil
	default:
		return ProxyFilter{}, fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
}
