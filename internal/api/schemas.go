package api

import (
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/shopspring/decimal"
)

type TradeRequest struct {
	UserID   int64  `json:"user_id" example:"1"`
	Symbol   string `json:"symbol" example:"TCS"`
	Quantity int64  `json:"quantity" example:"10"`
}

type RegisterUserRequest struct {
	Username string `json:"username" example:"alice"`
}

type UsersResponse struct {
	Users []domain.User `json:"users"`
	Count int           `json:"count"`
}

type TradeResponse struct {
	Message string       `json:"message"`
	Trade   domain.Trade `json:"trade"`
}

type PortfolioResponse struct {
	UserID     int64                   `json:"user_id"`
	Positions  []domain.PortfolioEntry `json:"positions"`
	TotalValue decimal.Decimal         `json:"total_value"`
	Count      int                     `json:"count"`
}

type HistoryResponse struct {
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"timeframe"`
	History   []domain.HistoryPoint `json:"history"`
	Count     int                   `json:"count"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database *DatabaseStats `json:"database,omitempty"`
	API      APIStats       `json:"api"`
}

type DatabaseStats struct {
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type APIStats struct {
	ActiveGoroutines int    `json:"active_goroutines"`
	MemoryUsed       string `json:"memory_used"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	Kind      string    `json:"kind,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
