package engine

import "github.com/eventpass/backend/internal/models"

// market holds at most one listing per ticket. Sold listings stay in the map
// inactive so getListing keeps answering for them.
type market struct {
	listings map[models.TicketID]models.Listing
}

func newMarket() market {
	return market{listings: make(map[models.TicketID]models.Listing)}
}

func (m *market) get(id models.TicketID) (models.Listing, bool) {
	l, ok := m.listings[id]
	return l, ok
}

func (m *market) put(l models.Listing) {
	l.Active = true
	m.listings[l.TicketID] = l
}

func (m *market) deactivate(id models.TicketID) {
	if l, ok := m.listings[id]; ok {
		l.Active = false
		m.listings[id] = l
	}
}
