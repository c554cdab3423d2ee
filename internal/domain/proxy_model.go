package domain

import (
	"time"
)

type Proxy struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Address   string    `gorm:"size:32;not null;uniqueIndex" json:"proxy"`
	IsWorking bool      `gorm:"not null;default:false" json:"is_working"`
	IsChecked bool      `gorm:"not null;default:false" json:"is_checked"`
	LatencyMs float64   `gorm:"column:latency;not null;default:0" json:"latency"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Note      *string   `gorm:"type:text" json:"note"`
	Location  Document  `json:"location"`
	Error     *string   `gorm:"type:text" json:"error"`
}

// MarkAttempted records that a check started. IsChecked only ever moves to true.
func (proxy *Proxy) MarkAttempted(now time.Time) {
	proxy.IsChecked = true
	if now.Before(proxy.CreatedAt) {
		now = proxy.CreatedAt
	}
	proxy.UpdatedAt = now
}

func (proxy *Proxy) MarkWorking(latencyMs float64, location Document) {
	proxy.IsWorking = true
	proxy.LatencyMs = latencyMs
	proxy.Location = location
	proxy.Error = nil
}

// MarkFailed leaves LatencyMs untouched; it is only meaningful next to IsWorking.
func (proxy *Proxy) MarkFailed(cause string) {
	proxy.IsWorking = false
	proxy.Location = nil
	if cause == "" {
		proxy.Error = nil
		return
	}
	proxy.Error = &cause
}

func (proxy *Proxy) ErrorText() string {
	if proxy.Error == nil {
		return ""
	}
	return *proxy.Error
}

func (proxy *Proxy) NoteText() string {
	if proxy.Note == nil {
		return ""
	}
	return *proxy.Note
}
