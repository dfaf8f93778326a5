package fbanalytics

import (
	"context"
	"time"

	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmoney"
	"funnelboard/internal/models/fbpayments"
	"funnelboard/internal/models/fbvisitors"

	"gorm.io/gorm"
)

const (
	revenueCurrency  = "BRL"
	DefaultDailyDays = 7
	dayLayout        = "2006-01-02"
)

var conversionEvents = []string{fbvisitors.EventFormSubmit, fbvisitors.EventPaymentComplete}

type AnalyticsService struct {
	db       *gorm.DB
	funnels  *fbfunnels.Service
	visitors *fbvisitors.Service
	realtime *RealtimeCounter
	Now      func() time.Time
}

// NewAnalyticsService builds the reporting service. realtime may be nil.
func NewAnalyticsService(db *gorm.DB, funnels *fbfunnels.Service, visitors *fbvisitors.Service, realtime *RealtimeCounter) *AnalyticsService {
	return &AnalyticsService{
		db:       db,
		funnels:  funnels,
		visitors: visitors,
		realtime: realtime,
		Now:      fbdb.Now,
	}
}

// ConversionFunnel counts page views and conversions per active step of a
// funnel, in step order.
func (as *AnalyticsService) ConversionFunnel(ctx context.Context, funnelID uint, start, end *time.Time) ([]StepConversion, error) {
	var steps []fbfunnels.FunnelStep
	err := as.db.WithContext(ctx).
		Where("funnel_id = ? AND is_active = ?", funnelID, true).
		Order("order_index ASC, id ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fberrors.Internal("conversion steps", err)
	}

	result := make([]StepConversion, 0, len(steps))
	if len(steps) == 0 {
		return result, nil
	}

	ids := make([]uint, len(steps))
	for i, st := range steps {
		ids[i] = st.ID
	}

	type eventCount struct {
		StepID    uint
		EventType string
		Count     int64
	}
	var counts []eventCount
	q := as.db.WithContext(ctx).Model(&fbvisitors.VisitorEvent{}).
		Select("step_id, event_type, COUNT(*) as count").
		Where("step_id IN ?", ids).
		Where("event_type IN ?", append([]string{fbvisitors.EventPageView}, conversionEvents...))
	q = applyRange(q, "created_at", start, end)
	if err := q.Group("step_id, event_type").Scan(&counts).Error; err != nil {
		return nil, fberrors.Internal("conversion counts", err)
	}

	views := map[uint]int64{}
	conversions := map[uint]int64{}
	for _, c := range counts {
		if c.EventType == fbvisitors.EventPageView {
			views[c.StepID] += c.Count
		} else {
			conversions[c.StepID] += c.Count
		}
	}

	for _, st := range steps {
		row := StepConversion{
			StepID:      st.ID,
			StepName:    st.Name,
			StepType:    string(st.StepType),
			OrderIndex:  st.OrderIndex,
			PageViews:   views[st.ID],
			Conversions: conversions[st.ID],
		}
		row.ConversionRate = Rate(row.Conversions, row.PageViews)
		result = append(result, row)
	}
	return result, nil
}

// Rate is conversions over views as a percentage with two decimals, 0
// without views.
func Rate(conversions, views int64) float64 {
	if views == 0 {
		return 0
	}
	return fbmoney.Round2(float64(conversions) / float64(views) * 100)
}

func applyRange(q *gorm.DB, column string, start, end *time.Time) *gorm.DB {
	if start != nil {
		q = q.Where(column+" >= ?", start.UTC())
	}
	if end != nil {
		q = q.Where(column+" <= ?", end.UTC())
	}
	return q
}

func (as *AnalyticsService) paidPayments(ctx context.Context, f Filter) *gorm.DB {
	q := as.db.WithContext(ctx).Model(&fbpayments.Payment{}).Where("status = ?", fbpayments.StatusPaid)
	if f.FunnelID != nil {
		q = q.Where("funnel_id = ?", *f.FunnelID)
	}
	return applyRange(q, "created_at", f.Start, f.End)
}

func (as *AnalyticsService) RevenueStats(ctx context.Context, f Filter) (RevenueStats, error) {
	stats := RevenueStats{Currency: revenueCurrency}

	var amounts []int64
	if err := as.paidPayments(ctx, f).Pluck("amount", &amounts).Error; err != nil {
		return stats, fberrors.Internal("revenue stats", err)
	}

	var total int64
	for _, a := range amounts {
		total += a
	}
	stats.TotalTransactions = int64(len(amounts))
	stats.TotalRevenue = fbmoney.Money(total).Float()
	if stats.TotalTransactions > 0 {
		stats.AverageTicket = fbmoney.Round2(stats.TotalRevenue / float64(stats.TotalTransactions))
	}
	return stats, nil
}

// DailyRevenue returns exactly days buckets, today and the days-1 UTC
// calendar days before it, oldest first.
func (as *AnalyticsService) DailyRevenue(ctx context.Context, funnelID *uint, days int) ([]DailyRevenue, error) {
	if days <= 0 {
		days = DefaultDailyDays
	}
	now := as.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	buckets := make([]DailyRevenue, days)
	index := make(map[string]int, days)
	for i := range buckets {
		d := start.AddDate(0, 0, i).Format(dayLayout)
		buckets[i] = DailyRevenue{Date: d}
		index[d] = i
	}

	var rows []fbpayments.Payment
	err := as.paidPayments(ctx, Filter{FunnelID: funnelID, Start: &start, End: &now}).
		Select("amount", "created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fberrors.Internal("daily revenue", err)
	}

	cents := make([]int64, days)
	for _, p := range rows {
		i, ok := index[p.CreatedAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		cents[i] += p.Amount.Cents()
		buckets[i].Transactions++
	}
	for i := range buckets {
		buckets[i].Revenue = fbmoney.Money(cents[i]).Float()
	}
	return buckets, nil
}

// HourlyStats buckets the events of one UTC day by hour. With a funnel,
// only events on that funnel's steps count.
func (as *AnalyticsService) HourlyStats(ctx context.Context, day time.Time, funnelID *uint) ([]HourlyStat, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	stats := make([]HourlyStat, 24)
	for h := range stats {
		stats[h].Hour = h
	}

	q := as.db.WithContext(ctx).Model(&fbvisitors.VisitorEvent{}).
		Select("event_type", "created_at").
		Where("created_at >= ? AND created_at < ?", start, end)
	if funnelID != nil {
		q = q.Where("step_id IN (?)", as.db.WithContext(ctx).Model(&fbfunnels.FunnelStep{}).Select("id").Where("funnel_id = ?", *funnelID))
	}

	var events []fbvisitors.VisitorEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fberrors.Internal("hourly stats", err)
	}

	for _, e := range events {
		s := &stats[e.CreatedAt.UTC().Hour()]
		s.TotalEvents++
		switch e.EventType {
		case fbvisitors.EventPageView:
			s.PageViews++
		case fbvisitors.EventFormSubmit:
			s.FormSubmits++
		case fbvisitors.EventPaymentInit, fbvisitors.EventPaymentComplete:
			s.Payments++
		}
	}
	return stats, nil
}

// PaymentMethodStats groups paid payments by method, ordered by method.
func (as *AnalyticsService) PaymentMethodStats(ctx context.Context, f Filter) ([]MethodStat, error) {
	type row struct {
		PaymentMethod string
		Count         int64
		Total         int64
	}
	var rows []row
	err := as.paidPayments(ctx, f).
		Select("payment_method, COUNT(*) as count, SUM(amount) as total").
		Group("payment_method").
		Order("payment_method ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fberrors.Internal("payment method stats", err)
	}

	stats := make([]MethodStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, MethodStat{
			Method:  r.PaymentMethod,
			Count:   r.Count,
			Revenue: fbmoney.Money(r.Total).Float(),
		})
	}
	return stats, nil
}

// PaymentAnalytics is the revenue report of the payments dashboard.
func (as *AnalyticsService) PaymentAnalytics(ctx context.Context, f Filter, days int) (*PaymentAnalytics, error) {
	revenue, err := as.RevenueStats(ctx, f)
	if err != nil {
		return nil, err
	}
	daily, err := as.DailyRevenue(ctx, f.FunnelID, days)
	if err != nil {
		return nil, err
	}
	methods, err := as.PaymentMethodStats(ctx, f)
	if err != nil {
		return nil, err
	}
	return &PaymentAnalytics{RevenueStats: revenue, DailyRevenue: daily, PaymentMethodStats: methods}, nil
}

// Dashboard is the monitoring overview, narrowed to one funnel when given.
func (as *AnalyticsService) Dashboard(ctx context.Context, funnelID *uint) (*Dashboard, error) {
	d := &Dashboard{}
	var err error

	if d.TotalFunnels, err = as.funnels.CountFunnels(ctx); err != nil {
		return nil, err
	}
	if d.TotalVisitors, err = as.visitors.CountVisitors(ctx); err != nil {
		return nil, err
	}

	online, err := as.visitors.OnlineVisitors(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	now := as.Now()
	d.OnlineCount = len(online)
	d.OnlineVisitors = make([]fbvisitors.VisitorView, 0, len(online))
	for i := range online {
		d.OnlineVisitors = append(d.OnlineVisitors, online[i].View(now))
	}

	if funnelID != nil {
		if d.Conversion, err = as.ConversionFunnel(ctx, *funnelID, nil, nil); err != nil {
			return nil, err
		}
	}
	if d.Revenue, err = as.RevenueStats(ctx, Filter{FunnelID: funnelID}); err != nil {
		return nil, err
	}
	if as.realtime != nil {
		d.Today = as.realtime.Snapshot(ctx, funnelID, now)
	}
	return d, nil
}
