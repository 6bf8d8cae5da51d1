package engine

import (
	"fmt"
	"sort"

	"github.com/eventpass/backend/internal/models"
)

// ticketTable is an arena indexed by id-1. Burned tickets stay in place as
// tombstones (exists=false), so ids are never reused.
type ticketTable struct {
	arena []models.Ticket
	owned map[models.Identity]map[models.TicketID]struct{}
}

func newTicketTable() ticketTable {
	return ticketTable{owned: make(map[models.Identity]map[models.TicketID]struct{})}
}

// nextID is the id the next issuance will receive.
func (t *ticketTable) nextID() models.TicketID {
	return models.TicketID(len(t.arena) + 1)
}

// live returns the ticket if it was issued and not burned.
func (t *ticketTable) live(id models.TicketID) (*models.Ticket, bool) {
	if id == 0 || uint64(id) > uint64(len(t.arena)) {
		return nil, false
	}
	tk := &t.arena[id-1]
	if !tk.Exists {
		return nil, false
	}
	return tk, true
}

func (t *ticketTable) balanceOf(owner models.Identity) int {
	return len(t.owned[owner])
}

func (t *ticketTable) ownedBy(owner models.Identity) []models.Ticket {
	ids := make([]models.TicketID, 0, len(t.owned[owner]))
	for id := range t.owned[owner] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Ticket, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.arena[id-1])
	}
	return out
}

func (t *ticketTable) mint(tk models.Ticket) {
	if tk.ID != t.nextID() {
		panic(fmt.Sprintf("engine: minting id %d, expected %d", tk.ID, t.nextID()))
	}
	tk.Exists = true
	t.arena = append(t.arena, tk)
	t.own(tk.Owner, tk.ID)
}

func (t *ticketTable) transfer(id models.TicketID, to models.Identity) {
	tk := &t.arena[id-1]
	t.disown(tk.Owner, id)
	tk.Owner = to
	t.own(to, id)
}

func (t *ticketTable) burn(id models.TicketID) {
	tk := &t.arena[id-1]
	t.disown(tk.Owner, id)
	tk.Exists = false
	tk.Owner = ""
}

func (t *ticketTable) own(owner models.Identity, id models.TicketID) {
	set, ok := t.owned[owner]
	if !ok {
		set = make(map[models.TicketID]struct{})
		t.owned[owner] = set
	}
	set[id] = struct{}{}
}

func (t *ticketTable) disown(owner models.Identity, id models.TicketID) {
	set := t.owned[owner]
	delete(set, id)
	if len(set) == 0 {
		delete(t.owned, owner)
	}
}
