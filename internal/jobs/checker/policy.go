package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"proxyfinder/internal/database"
	"proxyfinder/internal/domain"
)

// Policy decides which stored proxies a check pass picks up.
type Policy string

const (
	PolicyUnchecked      Policy = "unchecked"
	PolicyStale          Policy = "stale"
	PolicyUncheckedStale Policy = "unchecked+stale"
	PolicyAll            Policy = "all"

	DefaultPolicy = PolicyUncheckedStale
)

var ErrUnknownPolicy = errors.New("checker: unknown recheck policy")

func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyUnchecked, PolicyStale, PolicyUncheckedStale, PolicyAll:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownPolicy, raw)
	}
}

type ProxyQuerier interface {
	Query(ctx context.Context, filter database.ProxyFilter) ([]domain.Proxy, error)
}

// SelectPending returns the proxies policy selects. Stale means working and not updated
// within staleAfter of now. Unchecked proxies come first; each proxy appears once.
func SelectPending(ctx context.Context, store ProxyQuerier, policy Policy, now time.Time, staleAfter time.Duration) ([]*domain.Proxy, error) {
	yes, no := true, false
	staleBefore := now.Add(-staleAfter)

	var filters []database.ProxyFilter
	switch policy {
	case PolicyUnchecked:
		filters = append(filters, database.ProxyFilter{IsChecked: &no})
	case PolicyStale:
		filters = append(filters, database.ProxyFilter{IsWorking: &yes, UpdatedBefore: &staleBefore})
	case PolicyUncheckedStale:
		filters = append(filters,
			database.ProxyFilter{IsChecked: &no},
			database.ProxyFilter{IsWorking: &yes, UpdatedBefore: &staleBefore},
		)
	case PolicyAll:
		filters = append(filters, database.ProxyFilter{})
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownPolicy, policy)
	}

	seen := make(map[uint64]struct{})
	var pending []*domain.Proxy
	for _, filter := range filters {
		proxies, err := store.Query(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("checker: select pending: %w", err)
		}
		for i := range proxies {
			if _, ok := seen[proxies[i].ID]; ok {
				continue
			}
			seen[proxies[i].ID] = struct{}{}
			pending = append(pending, &proxies[i])
		}
	}

	return pending, nil
}
