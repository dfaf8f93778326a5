package fbanalytics

import (
	"time"

	"funnelboard/internal/models/fbvisitors"
)

// StepConversion is one row of a conversion funnel.
type StepConversion struct {
	StepID         uint    `json:"step_id"`
	StepName       string  `json:"step_name"`
	StepType       string  `json:"step_type"`
	OrderIndex     int     `json:"order_index"`
	PageViews      int64   `json:"page_views"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

type RevenueStats struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalTransactions int64   `json:"total_transactions"`
	AverageTicket     float64 `json:"average_ticket"`
	Currency          string  `json:"currency"`
}

type DailyRevenue struct {
	Date         string  `json:"date"`
	Revenue      float64 `json:"revenue"`
	Transactions int64   `json:"transactions"`
}

type HourlyStat struct {
	Hour        int   `json:"hour"`
	TotalEvents int64 `json:"total_events"`
	PageViews   int64 `json:"page_views"`
	FormSubmits int64 `json:"form_submits"`
	Payments    int64 `json:"payments"`
}

type MethodStat struct {
	Method  string  `json:"method"`
	Count   int64   `json:"count"`
	Revenue float64 `json:"revenue"`
}

// PaymentAnalytics groups the revenue views of the payments dashboard.
type PaymentAnalytics struct {
	RevenueStats       RevenueStats   `json:"revenue_stats"`
	DailyRevenue       []DailyRevenue `json:"daily_revenue"`
	PaymentMethodStats []MethodStat   `json:"payment_methods_stats"`
}

type Dashboard struct {
	TotalFunnels   int64                    `json:"total_funnels"`
	TotalVisitors  int64                    `json:"total_visitors"`
	OnlineCount    int                      `json:"online_visitors_count"`
	OnlineVisitors []fbvisitors.VisitorView `json:"online_visitors"`
	Conversion     []StepConversion         `json:"conversion_data,omitempty"`
	Revenue        RevenueStats             `json:"revenue_stats"`
	Today          *Realtime                `json:"today,omitempty"`
}

// Realtime is the per-day counter snapshot kept in redis.
type Realtime struct {
	Events         map[string]int64 `json:"events"`
	UniqueSessions int64            `json:"unique_sessions"`
}

// Filter narrows payment and event queries. Nil fields are open.
type Filter struct {
	FunnelID *uint
	Start    *time.Time
	End      *time.Time
}
