package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"

	"gorm.io/gorm"
)

const (
	RealtimeWindow  = 5 * time.Minute
	trendDays       = 7
	topLocationsMax = 5
	DefaultTopURLs  = 10
	MaxTopURLs      = 100
)

// Summary is a fold of click rows into counts. Keys are the stored strings
// as-is; hours are UTC.
type Summary struct {
	TotalClicks      int            `json:"totalClicks"`
	Browsers         map[string]int `json:"browsers"`
	Devices          map[string]int `json:"devices"`
	OperatingSystems map[string]int `json:"operatingSystems"`
	Locations        map[string]int `json:"locations"`
	Referrers        map[string]int `json:"referrers"`
	HourlyClicks     [24]int        `json:"hourlyClicks"`
}

func Summarize(clicks []models.Click) Summary {
	s := Summary{
		TotalClicks:      len(clicks),
		Browsers:         make(map[string]int),
		Devices:          make(map[string]int),
		OperatingSystems: make(map[string]int),
		Locations:        make(map[string]int),
		Referrers:        make(map[string]int),
	}
	for _, c := range clicks {
		s.Browsers[c.Browser]++
		s.Devices[c.Device]++
		s.OperatingSystems[c.OperatingSystem]++
		s.Locations[c.Location]++
		s.Referrers[c.Referrer]++
		s.HourlyClicks[c.ClickedAt.UTC().Hour()]++
	}
	return s
}

type LinkAnalytics struct {
	Summary Summary        `json:"summary"`
	Details []models.Click `json:"details"`
}

type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

type DashboardSummary struct {
	TotalLinks   int64           `json:"totalLinks"`
	TotalClicks  int64           `json:"totalClicks"`
	ActiveLinks  int64           `json:"activeLinks"`
	TopLocations []LocationCount `json:"topLocations"`
	ClicksTrend  []DailyClicks   `json:"clicksTrend"`
	Summary      Summary         `json:"summary"`
}

type AnalyticsService struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyticsService(db *gorm.DB, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{db: db, logger: logger, now: time.Now}
}

func (s *AnalyticsService) LinkAnalytics(ctx context.Context, principal Principal, urlID uint) (*LinkAnalytics, error) {
	return s.linkClicks(ctx, principal, urlID, nil)
}

func (s *AnalyticsService) TimeRange(ctx context.Context, principal Principal, urlID uint, start, end time.Time) (*LinkAnalytics, error) {
	if end.Before(start) {
		return nil, NewValidationError("End date must not be before start date", nil)
	}
	return s.linkClicks(ctx, principal, urlID, func(q *gorm.DB) *gorm.DB {
		return q.Where("clicked_at >= ? AND clicked_at <= ?", start.UTC(), end.UTC())
	})
}

func (s *AnalyticsService) Realtime(ctx context.Context, principal Principal, urlID uint) (*LinkAnalytics, error) {
	since := s.now().Add(-RealtimeWindow).UTC()
	return s.linkClicks(ctx, principal, urlID, func(q *gorm.DB) *gorm.DB {
		return q.Where("clicked_at >= ?", since)
	})
}

func (s *AnalyticsService) authorizedLink(ctx context.Context, principal Principal, urlID uint) (*models.URL, error) {
	var link models.URL
	err := s.db.WithContext(ctx).First(&link, urlID).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFoundError("URL not found")
	}
	if err != nil {
		return nil, NewStoreError("look up link", err)
	}
	if !principal.CanAccess(link.UserID) {
		return nil, NewForbiddenError("Forbidden: Access denied")
	}
	return &link, nil
}

func (s *AnalyticsService) linkClicks(ctx context.Context, principal Principal, urlID uint, scope func(*gorm.DB) *gorm.DB) (*LinkAnalytics, error) {
	link, err := s.authorizedLink(ctx, principal, urlID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("url_id = ?", link.ID)
	if scope != nil {
		query = scope(query)
	}

	clicks := []models.Click{}
	if err := query.Order("clicked_at DESC, id DESC").Find(&clicks).Error; err != nil {
		return nil, NewStoreError("load clicks", err)
	}

	return &LinkAnalytics{Summary: Summarize(clicks), Details: clicks}, nil
}

// UserSummary covers the links owned by the principal.
func (s *AnalyticsService) UserSummary(ctx context.Context, principal Principal) (*DashboardSummary, error) {
	db := s.db.WithContext(ctx)
	now := s.now().UTC()
	out := &DashboardSummary{}

	owned := func() *gorm.DB { return db.Model(&models.URL{}).Where("user_id = ?", principal.UserID) }

	if err := owned().Count(&out.TotalLinks).Error; err != nil {
		return nil, NewStoreError("count links", err)
	}
	if err := owned().Select("COALESCE(SUM(clicks), 0)").Scan(&out.TotalClicks).Error; err != nil {
		return nil, NewStoreError("sum clicks", err)
	}
	if err := owned().
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&out.ActiveLinks).Error; err != nil {
		return nil, NewStoreError("count active links", err)
	}

	clicks := []models.Click{}
	if err := db.
		Where("url_id IN (?)", owned().Select("id")).
		Order("clicked_at DESC").
		Find(&clicks).Error; err != nil {
		return nil, NewStoreError("load clicks", err)
	}

	out.Summary = Summarize(clicks)
	out.TopLocations = topLocations(out.Summary.Locations, topLocationsMax)
	out.ClicksTrend = clicksTrend(clicks, now, trendDays)
	return out, nil
}

// TopURLs orders links by click count. Admins rank every link.
func (s *AnalyticsService) TopURLs(ctx context.Context, principal Principal, limit int) ([]models.URL, error) {
	if limit <= 0 {
		limit = DefaultTopURLs
	}
	if limit > MaxTopURLs {
		limit = MaxTopURLs
	}

	query := s.db.WithContext(ctx).Order("clicks DESC, id ASC").Limit(limit)
	if !principal.IsAdmin() {
		query = query.Where("user_id = ?", principal.UserID)
	}

	links := []models.URL{}
	if err := query.Find(&links).Error; err != nil {
		return nil, NewStoreError("load top links", err)
	}
	return links, nil
}

func topLocations(locations map[string]int, n int) []LocationCount {
	out := make([]LocationCount, 0, len(locations))
	for loc, count := range locations {
		out = append(out, LocationCount{Location: loc, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Location < out[j].Location
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// clicksTrend returns one zero-filled bucket per UTC day, oldest first,
// ending today.
func clicksTrend(clicks []models.Click, now time.Time, days int) []DailyClicks {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	index := make(map[string]int, days)
	trend := make([]DailyClicks, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i-days+1).Format(time.DateOnly)
		trend[i] = DailyClicks{Date: date}
		index[date] = i
	}
	for _, c := range clicks {
		if i, ok := index[c.ClickedAt.UTC().Format(time.DateOnly)]; ok {
			trend[i].Clicks++
		}
	}
	return trend
}
