package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ms-meals/internal/confirmation"
	"ms-meals/internal/cutoff"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
)

type DBLayer interface {
	ActiveContracts(ctx context.Context, restaurantID, date string) ([]models.Contract, error)
	OrdersByDate(ctx context.Context, restaurantID, date string) ([]models.Order, error)
	IncludedLineCounts(ctx context.Context, orderIDs []string) (map[string]int, error)
	WorksitesByIDs(ctx context.Context, ids []string) ([]models.Worksite, error)
	RestaurantsForUser(ctx context.Context, userID string) ([]models.Restaurant, error)
	UserHasRestaurant(ctx context.Context, userID, restaurantID string) (bool, error)
}

// SnapshotCache stores rebuilt snapshots. Put must refuse a snapshot whose
// Seq is older than the one already stored for the same restaurant/date.
type SnapshotCache interface {
	Get(ctx context.Context, restaurantID, date string) (*models.Snapshot, error)
	Put(ctx context.Context, snap *models.Snapshot) error
	Invalidate(ctx context.Context, restaurantID, date string) error
}

// Service owns the dashboard read path: cutoff resolution, order
// aggregation and the per-shift confirm gate flags. Rebuilds of the same
// restaurant/date are tagged with a monotonically increasing sequence
// number; a rebuild that was superseded while its queries ran discards its
// cache write instead of overwriting fresher state.
type Service struct {
	DB       DBLayer
	Cache    SnapshotCache
	Logger   *logger.Logger
	Now      func() time.Time
	collator *collate.Collator

	mu   sync.Mutex
	seqs map[string]uint64
}

func NewService(db DBLayer, cache SnapshotCache, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Cache:    cache,
		Logger:   log,
		Now:      time.Now,
		collator: collate.New(language.BrazilianPortuguese),
		seqs:     make(map[string]uint64),
	}
}

// Restaurants returns the active restaurants the user may manage.
func (s *Service) Restaurants(ctx context.Context, userID string) ([]models.Restaurant, error) {
	return s.DB.RestaurantsForUser(ctx, userID)
}

// Authorize reports whether the user is linked to the restaurant.
func (s *Service) Authorize(ctx context.Context, userID, restaurantID string) (bool, error) {
	return s.DB.UserHasRestaurant(ctx, userID, restaurantID)
}

// Snapshot serves the dashboard state, preferring the cache. A cache miss
// or a cache read error falls through to a rebuild.
func (s *Service) Snapshot(ctx context.Context, restaurantID, date string) (*models.Snapshot, error) {
	if s.Cache != nil {
		if snap, err := s.Cache.Get(ctx, restaurantID, date); err == nil && snap != nil {
			return snap, nil
		}
	}
	return s.Rebuild(ctx, restaurantID, date)
}

// Rebuild recomputes the snapshot from the database. Any fetch failure
// aborts the whole rebuild; partial results are never returned and the
// cache keeps whatever it had.
func (s *Service) Rebuild(ctx context.Context, restaurantID, date string) (*models.Snapshot, error) {
	seq := s.nextSeq(restaurantID, date)

	contracts, err := s.DB.ActiveContracts(ctx, restaurantID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contracts: %w", err)
	}
	// The query already scopes to the date; ResolveOn re-applies the
	// activity window so the reduction stays correct regardless of caller.
	cutoffs := cutoff.ResolveOn(contracts, date)

	orders, err := s.DB.OrdersByDate(ctx, restaurantID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	orderIDs := make([]string, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}
	lineCounts, err := s.DB.IncludedLineCounts(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order lines: %w", err)
	}

	names, err := s.worksiteNames(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch worksites: %w", err)
	}

	now := s.Now()
	snap := &models.Snapshot{
		RestaurantID: restaurantID,
		Date:         date,
		GeneratedAt:  now,
		Seq:          seq,
	}
	for _, shift := range models.Shifts {
		*snap.Shift(shift) = s.buildShiftReport(shift, date, now, cutoffs, orders, lineCounts, names)
	}

	if s.Cache != nil && s.isLatest(restaurantID, date, seq) {
		if err := s.Cache.Put(ctx, snap); err != nil {
			s.Logger.Warn("DASHBOARD", fmt.Sprintf("snapshot cache write failed: %v", err))
		}
	}

	return snap, nil
}

// Invalidate drops the cached snapshot so the next read rebuilds. Used after
// confirmation commits and on upstream order events; failures are logged
// only, the database remains the source of truth.
func (s *Service) Invalidate(ctx context.Context, restaurantID, date string) {
	s.nextSeq(restaurantID, date)
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, restaurantID, date); err != nil {
		s.Logger.Warn("DASHBOARD", fmt.Sprintf("snapshot invalidation failed: %v", err))
	}
}

func (s *Service) buildShiftReport(shift, date string, now time.Time, cutoffs cutoff.ShiftCutoffs, orders []models.Order, lineCounts map[string]int, names map[string]string) models.ShiftReport {
	report := models.ShiftReport{
		Shift:     shift,
		Cutoff:    cutoffs.For(shift),
		Breakdown: []models.WorksiteQuantity{},
	}

	// Sum included line counts per worksite. A worksite normally has one
	// order per shift per date, but the aggregation sums over however many
	// exist.
	quantities := make(map[string]int)
	shiftOrders := 0
	confirmedOrders := 0
	for _, o := range orders {
		if o.Shift != shift {
			continue
		}
		shiftOrders++
		if o.Confirmed() {
			confirmedOrders++
		}
		quantities[o.WorksiteID] += lineCounts[o.ID]
	}

	for worksiteID, qty := range quantities {
		name := names[worksiteID]
		if name == "" {
			name = worksiteID
		}
		report.Breakdown = append(report.Breakdown, models.WorksiteQuantity{
			WorksiteID: worksiteID,
			Name:       name,
			Quantity:   qty,
		})
		report.Total += qty
	}

	sort.SliceStable(report.Breakdown, func(i, j int) bool {
		a, b := report.Breakdown[i], report.Breakdown[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return s.collator.CompareString(a.Name, b.Name) < 0
	})

	// Zero orders is never "confirmed": an empty day must not be silently
	// approved.
	report.Orders = shiftOrders
	report.Confirmed = shiftOrders > 0 && confirmedOrders == shiftOrders
	report.Confirmable = shiftOrders > 0 && confirmation.Allowed(date, now, report.Cutoff, report.Confirmed)

	return report
}

func (s *Service) worksiteNames(ctx context.Context, orders []models.Order) (map[string]string, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if !seen[o.WorksiteID] {
			seen[o.WorksiteID] = true
			ids = append(ids, o.WorksiteID)
		}
	}

	worksites, err := s.DB.WorksitesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(worksites))
	for _, w := range worksites {
		names[w.ID] = w.DisplayName()
	}
	return names, nil
}

func (s *Service) nextSeq(restaurantID, date string) uint64 {
	key := restaurantID + "|" + date
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[key]++
	return s.seqs[key]
}

func (s *Service) isLatest(restaurantID, date string, seq uint64) bool {
	key := restaurantID + "|" + date
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[key] == seq
}
