package models

import "time"

type Alert struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"not null;index"`
	State      string    `json:"state" gorm:"not null;default:wait"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// DefaultLinkName names links created without an explicit name.
const DefaultLinkName = "superTrend + easy"

type Link struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"default:superTrend + easy"`
	LinkBuy    string    `json:"linkBuy" gorm:"not null"`
	LinkSell   string    `json:"linkSell" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// URLFor returns the destination for a trade side, or "" for anything else.
func (l *Link) URLFor(state string) string {
	switch state {
	case StateBuy:
		return l.LinkBuy
	case StateSell:
		return l.LinkSell
	}
	return ""
}
