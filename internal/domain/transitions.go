package domain

// blockedTransitions holds the forbidden moves per source status. Anything
// not listed is allowed:
//   - duplicate is terminal
//   - closed and cancelled may only be reopened
//   - reopened is reachable only from resolved, closed or cancelled
var blockedTransitions = map[TicketStatus]map[TicketStatus]struct{}{}

// reopenSources are the only statuses a ticket may be reopened from.
var reopenSources = map[TicketStatus]struct{}{
	TicketStatusResolved:  {},
	TicketStatusClosed:    {},
	TicketStatusCancelled: {},
}

func init() {
	for _, from := range TicketStatuses {
		blocked := map[TicketStatus]struct{}{}
		for _, to := range TicketStatuses {
			if from == to {
				continue
			}
			switch from {
			case TicketStatusDuplicate:
				blocked[to] = struct{}{}
				continue
			case TicketStatusClosed, TicketStatusCancelled:
				if to != TicketStatusReopened {
					blocked[to] = struct{}{}
				}
				continue
			}
			if to == TicketStatusReopened {
				if _, ok := reopenSources[from]; !ok {
					blocked[to] = struct{}{}
				}
			}
		}
		blockedTransitions[from] = blocked
	}
}

// CanTransition reports whether a ticket in status from may move to status to.
func CanTransition(from, to TicketStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	_, blocked := blockedTransitions[from][to]
	return !blocked
}

// AllowedTransitions returns the statuses reachable from the given one, in
// display order, excluding the status itself.
func AllowedTransitions(from TicketStatus) []TicketStatus {
	out := make([]TicketStatus, 0, len(TicketStatuses))
	for _, to := range TicketStatuses {
		if to != from && CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}
