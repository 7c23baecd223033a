package models

import "time"

// AlertPair binds two alerts and one link under a sequential index.
// The referenced rows are not constrained by the store and survive deletion
// of the pair.
type AlertPair struct {
	Index      uint      `json:"index" gorm:"primaryKey;autoIncrement"`
	Alert1ID   *uint     `json:"alert1Id"`
	Alert2ID   *uint     `json:"alert2Id"`
	LinkID     *uint     `json:"linkId"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUpdate time.Time `json:"lastUpdate"`

	Alert1 *Alert `json:"alert1,omitempty" gorm:"foreignKey:Alert1ID"`
	Alert2 *Alert `json:"alert2,omitempty" gorm:"foreignKey:Alert2ID"`
	Link   *Link  `json:"link,omitempty" gorm:"foreignKey:LinkID"`
}

// AlertAt returns the alert in slot 1 or 2.
func (p *AlertPair) AlertAt(slot int) *Alert {
	if slot == 2 {
		return p.Alert2
	}
	return p.Alert1
}
