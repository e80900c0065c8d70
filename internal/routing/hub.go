package routing

import (
	"strings"
	"sync/atomic"

	"github.com/fire-team/ticket-router/internal/models"
)

// HubSplitter spreads unresolved tickets across hub groups. Successive calls
// alternate between the groups that currently have offices, and within a
// group rotate over its offices. Both counters only ever advance, so the
// split converges on an even share regardless of call timing.
type HubSplitter struct {
	groups  []HubGroup
	turn    atomic.Uint64
	cursors []atomic.Uint64
}

func NewHubSplitter(groups []HubGroup) *HubSplitter {
	return &HubSplitter{
		groups:  groups,
		cursors: make([]atomic.Uint64, len(groups)),
	}
}

// Members partitions offices into hub groups. An office joins the first group
// whose alias appears in its normalized name or code.
func (h *HubSplitter) Members(offices []models.Office) [][]models.Office {
	members := make([][]models.Office, len(h.groups))
	for _, o := range offices {
		name := Normalize(o.Name)
		code := Normalize(o.Code)
		for gi, g := range h.groups {
			if matchesAlias(name, g.Aliases) || matchesAlias(code, g.Aliases) {
				members[gi] = append(members[gi], o)
				break
			}
		}
	}
	return members
}

// Pick returns the next hub office and its group name, or nil when no office
// belongs to any group.
func (h *HubSplitter) Pick(offices []models.Office) (*models.Office, string) {
	return h.next(offices, true)
}

// Peek returns what the next Pick would return without advancing the split.
func (h *HubSplitter) Peek(offices []models.Office) (*models.Office, string) {
	return h.next(offices, false)
}

func (h *HubSplitter) next(offices []models.Office, advance bool) (*models.Office, string) {
	members := h.Members(offices)
	var available []int
	for gi, m := range members {
		if len(m) > 0 {
			available = append(available, gi)
		}
	}
	if len(available) == 0 {
		return nil, ""
	}

	n := h.turn.Load()
	if advance {
		n = h.turn.Add(1) - 1
	}
	gi := available[n%uint64(len(available))]
	group := members[gi]
	c := h.cursors[gi].Load()
	if advance {
		c = h.cursors[gi].Add(1) - 1
	}
	picked := group[c%uint64(len(group))]
	return &picked, h.groups[gi].Name
}

func matchesAlias(normalized string, aliases []string) bool {
	if normalized == "" {
		return false
	}
	for _, a := range aliases {
		if na := Normalize(a); na != "" && strings.Contains(normalized, na) {
			return true
		}
	}
	return false
}
