package endless

import (
	"hash/fnv"
	"time"

	"github.com/pthm-cable/scrapline/content"
)

// DateKey formats a date the way daily modifiers are keyed.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ModifierForDate picks the daily modifier for a calendar date. Every
// player gets the same modifier on the same date.
func ModifierForDate(date time.Time, cat *content.Catalog) Modifier {
	if len(cat.Modifiers) == 0 {
		return Modifier{ID: "calm", HPMult: 1, DamageMult: 1, ScrapMult: 1}
	}
	h := fnv.New32a()
	h.Write([]byte(DateKey(date)))
	return cat.Modifiers[h.Sum32()%uint32(len(cat.Modifiers))]
}
