package availability

import (
	"sort"
	"strings"

	"meetslot/internal/models"
)

// Deduplicate keeps at most one response per identity: the last one in input
// order. Responses without identity or payload are dropped. A kept response
// sits at the position of its last occurrence, not its identity's first;
// aggregation does not depend on this order.
func Deduplicate(responses []models.Response) []models.Response {
	lastIdx := make(map[string]int, len(responses))
	for i, r := range responses {
		id := identityKey(r)
		if id == "" || r.Availability == nil {
			continue
		}
		lastIdx[id] = i
	}

	out := make([]models.Response, 0, len(lastIdx))
	for i, r := range responses {
		id := identityKey(r)
		if id == "" || r.Availability == nil {
			continue
		}
		if lastIdx[id] == i {
			out = append(out, r)
		}
	}
	return out
}

// SortBySubmission orders responses by SubmittedAt when every response has a
// timestamp. Otherwise the input order is returned unchanged. Equal
// timestamps keep their relative order.
func SortBySubmission(responses []models.Response) []models.Response {
	out := make([]models.Response, len(responses))
	copy(out, responses)

	for _, r := range out {
		if r.SubmittedAt.IsZero() {
			return out
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

func identityKey(r models.Response) string {
	return strings.TrimSpace(r.Identity)
}
