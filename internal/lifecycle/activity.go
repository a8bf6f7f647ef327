package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"ptcoach/pt-manager/internal/domain"
)

// Kind tags an activity feed item.
type Kind string

const (
	KindNewClient   Kind = "new_client"
	KindNewCheck    Kind = "new_check"
	KindNewAnamnesi Kind = "new_anamnesi"
	KindExpiring    Kind = "expiring"
)

// Item is one entry of the admin activity feed. It is a read-time projection
// and is never stored.
type Item struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ClientID    string    `json:"clientId"`
	ClientName  string    `json:"clientName"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Event is a submission (check or anamnesi) as read from storage. At is the
// zero time when the stored timestamp could not be coerced.
type Event struct {
	ID       string
	ClientID string
	At       time.Time
}

// Sources are the collections the feed is built from.
type Sources struct {
	Clients  []domain.Client
	Checks   []Event
	Anamnesi []Event
}

// FeedOptions selects the projections and the truncation window of a feed.
// Limit truncates the merged list; PerKind truncates each kind first. A zero
// value means unbounded.
type FeedOptions struct {
	Kinds   []Kind
	Limit   int
	PerKind map[Kind]int
}

// DashboardFeed is the combined most-recent window shown on the dashboard.
func DashboardFeed(limit int) FeedOptions {
	return FeedOptions{
		Kinds: []Kind{KindExpiring, KindNewCheck, KindNewAnamnesi},
		Limit: limit,
	}
}

// UpdatesFeed is the per-kind window shown on the updates page.
func UpdatesFeed() FeedOptions {
	return FeedOptions{
		Kinds: []Kind{KindNewClient, KindNewCheck, KindNewAnamnesi},
		PerKind: map[Kind]int{
			KindNewClient:   5,
			KindNewCheck:    10,
			KindNewAnamnesi: 10,
		},
	}
}

// Aggregator merges the sources into one reverse-chronological feed.
type Aggregator struct {
	Classifier Classifier
}

func NewAggregator(c Classifier) *Aggregator {
	return &Aggregator{Classifier: c}
}

// Build projects the sources into items, drops items whose client is not in
// src.Clients, drops dismissed items, sorts by timestamp descending and
// applies the window. Items with no timestamp sort last.
func (a *Aggregator) Build(src Sources, now time.Time, opts FeedOptions, dismissed DismissedSet) []Item {
	names := make(map[string]string, len(src.Clients))
	for _, c := range src.Clients {
		names[c.ID.Hex()] = c.Name
	}

	var items []Item
	for _, kind := range opts.Kinds {
		projected := a.project(kind, src, now)
		kept := projected[:0]
		for _, it := range projected {
			name, ok := names[it.ClientID]
			if !ok {
				continue // orphan left behind by a deleted client
			}
			if dismissed.Has(it.ID) {
				continue
			}
			it.ClientName = name
			kept = append(kept, it)
		}
		sortItems(kept)
		if n := opts.PerKind[kind]; n > 0 && len(kept) > n {
			kept = kept[:n]
		}
		items = append(items, kept...)
	}

	sortItems(items)
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	if items == nil {
		items = []Item{}
	}
	return items
}

func (a *Aggregator) project(kind Kind, src Sources, now time.Time) []Item {
	var out []Item
	switch kind {
	case KindNewClient:
		for _, c := range src.Clients {
			out = append(out, Item{
				ID:          itemID(kind, c.ID.Hex()),
				Kind:        kind,
				ClientID:    c.ID.Hex(),
				Timestamp:   c.CreatedAt,
				Description: "New client",
			})
		}
	case KindNewCheck:
		for _, e := range src.Checks {
			out = append(out, eventItem(kind, e, "Submitted a new check"))
		}
	case KindNewAnamnesi:
		for _, e := range src.Anamnesi {
			out = append(out, eventItem(kind, e, "Completed the intake questionnaire"))
		}
	case KindExpiring:
		for _, c := range src.Clients {
			if a.Classifier.Classify(c.ExpiresAt, now) != StatusExpiring {
				continue
			}
			out = append(out, Item{
				ID:          itemID(kind, c.ID.Hex()),
				Kind:        kind,
				ClientID:    c.ID.Hex(),
				Timestamp:   *c.ExpiresAt,
				Description: expiringDescription(a.Classifier.DaysLeft(*c.ExpiresAt, now)),
			})
		}
	}
	return out
}

func eventItem(kind Kind, e Event, description string) Item {
	return Item{
		ID:          itemID(kind, e.ID),
		Kind:        kind,
		ClientID:    e.ClientID,
		Timestamp:   e.At,
		Description: description,
	}
}

// itemID is unique across kinds: a client can be both new and expiring.
func itemID(kind Kind, sourceID string) string {
	return string(kind) + ":" + sourceID
}

func expiringDescription(days int) string {
	switch days {
	case 0:
		return "Subscription expires today"
	case 1:
		return "Subscription expires tomorrow"
	}
	return fmt.Sprintf("Subscription expires in %d days", days)
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Timestamp, items[j].Timestamp
		if ti.Equal(tj) {
			return items[i].ID < items[j].ID
		}
		return ti.After(tj)
	})
}

// GroupByKind splits a feed into per-kind columns, keeping order.
func GroupByKind(items []Item) map[Kind][]Item {
	out := make(map[Kind][]Item)
	for _, it := range items {
		out[it.Kind] = append(out[it.Kind], it)
	}
	return out
}
