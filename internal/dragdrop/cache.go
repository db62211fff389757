package dragdrop

import (
	"retroboard/api/internal/broadcast"
	"retroboard/api/internal/cards"
)

// Cache is the client-local snapshot of the board's cards. It is primed
// once from a full card listing and then kept current by applying the
// board's broadcast events in arrival order. It is never authoritative;
// a missed event only degrades hover feedback until the next full load.
//
// The cache is single-threaded by contract, like the gesture tracker
// that reads it.
type Cache struct {
	view cards.MapView
}

func NewCache() *Cache {
	return &Cache{view: cards.MapView{}}
}

// Put inserts or replaces one snapshot. Used when priming from a full
// card listing.
func (c *Cache) Put(snapshot cards.Snapshot) {
	c.view[snapshot.ID] = snapshot
}

func (c *Cache) Card(id string) (cards.Snapshot, bool) {
	return c.view.Card(id)
}

func (c *Cache) Len() int {
	return len(c.view)
}

// Apply folds one broadcast event into the snapshot. Events for unknown
// cards are dropped silently; content-only updates carry no structural
// state and are ignored.
func (c *Cache) Apply(event broadcast.Event) {
	switch event.Type {
	case "card.created":
		c.applyCreated(event.Payload)
	case "card.moved":
		c.applyMoved(event.Payload)
	case "card.deleted":
		c.applyDeleted(event.Payload)
	case "card.linked":
		c.applyLinked(event.Payload)
	case "card.unlinked":
		c.applyUnlinked(event.Payload)
	case "card.reacted":
		c.applyReacted(event.Payload)
	}
}

func (c *Cache) applyCreated(payload map[string]any) {
	id := asString(payload["id"])
	if id == "" {
		return
	}
	snapshot := cards.Snapshot{
		ID:        id,
		BoardID:   asString(payload["boardId"]),
		ColumnID:  asString(payload["columnId"]),
		Type:      cards.Type(asString(payload["cardType"])),
		ParentID:  asString(payload["parentId"]),
		Direct:    asInt(payload["directReactionCount"]),
		Aggregate: asInt(payload["aggregatedReactionCount"]),
	}
	if linked, ok := payload["linkedFeedbackIds"]; ok {
		snapshot.Linked = asStrings(linked)
	}
	c.view[id] = snapshot
}

func (c *Cache) applyMoved(payload map[string]any) {
	card, ok := c.view[asString(payload["cardId"])]
	if !ok {
		return
	}
	card.ColumnID = asString(payload["columnId"])
	c.view[card.ID] = card
}

func (c *Cache) applyDeleted(payload map[string]any) {
	delete(c.view, asString(payload["cardId"]))
	for _, orphanID := range asStrings(payload["orphanedIds"]) {
		if orphan, ok := c.view[orphanID]; ok {
			orphan.ParentID = ""
			c.view[orphanID] = orphan
		}
	}
	if parentID := asString(payload["affectedParent"]); parentID != "" {
		if parent, ok := c.view[parentID]; ok {
			parent.Aggregate = asInt(payload["newAggregate"])
			c.view[parentID] = parent
		}
	}
}

func (c *Cache) applyLinked(payload map[string]any) {
	sourceID := asString(payload["source"])
	targetID := asString(payload["target"])
	source, okSource := c.view[sourceID]
	target, okTarget := c.view[targetID]
	if !okSource || !okTarget {
		return
	}
	switch cards.LinkKind(asString(payload["kind"])) {
	case cards.KindParent:
		target.ParentID = sourceID
		source.Aggregate += target.Direct
		c.view[sourceID] = source
		c.view[targetID] = target
	case cards.KindAddresses:
		for _, linked := range source.Linked {
			if linked == targetID {
				return
			}
		}
		source.Linked = append(source.Linked, targetID)
		c.view[sourceID] = source
	}
}

func (c *Cache) applyUnlinked(payload map[string]any) {
	sourceID := asString(payload["source"])
	targetID := asString(payload["target"])
	source, okSource := c.view[sourceID]
	target, okTarget := c.view[targetID]
	if !okSource || !okTarget {
		return
	}
	switch cards.LinkKind(asString(payload["kind"])) {
	case cards.KindParent:
		if target.ParentID != sourceID {
			return
		}
		target.ParentID = ""
		source.Aggregate -= target.Direct
		if source.Aggregate < 0 {
			source.Aggregate = 0
		}
		c.view[sourceID] = source
		c.view[targetID] = target
	case cards.KindAddresses:
		for i, linked := range source.Linked {
			if linked == targetID {
				source.Linked = append(source.Linked[:i], source.Linked[i+1:]...)
				break
			}
		}
		c.view[sourceID] = source
	}
}

func (c *Cache) applyReacted(payload map[string]any) {
	card, ok := c.view[asString(payload["card"])]
	if !ok {
		return
	}
	newDirect := asInt(payload["newDirectCount"])
	delta := newDirect - card.Direct
	card.Direct = newDirect
	card.Aggregate += delta
	if card.Aggregate < 0 {
		card.Aggregate = 0
	}
	c.view[card.ID] = card

	if parentID := asString(payload["affectedParent"]); parentID != "" {
		if parent, ok := c.view[parentID]; ok {
			parent.Aggregate = asInt(payload["newAggregate"])
			c.view[parentID] = parent
		}
	} else if aggregate, ok := payload["newAggregate"]; ok {
		card.Aggregate = asInt(aggregate)
		c.view[card.ID] = card
	}
}

// Event payloads arrive as map[string]any twice over: locally typed when
// produced in-process, float64-numbered after a JSON round trip. The
// decoders accept both.

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func asStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
