package temporal

import (
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

var zoneCache sync.Map // zone name -> *time.Location

// LookupZone resolves an IANA zone name. The empty name and "Local" are not
// zone names and are rejected even though time.LoadLocation accepts them.
func LookupZone(name string) (*time.Location, bool) {
	if name == "" || strings.EqualFold(name, "local") {
		return nil, false
	}
	if cached, ok := zoneCache.Load(name); ok {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	zoneCache.Store(name, loc)
	return loc, true
}

// Project re-expresses a UTC instant in the display zone. An empty name, "UTC"
// or an unknown name leaves the instant untouched; display is best effort.
func Project(instant time.Time, zone string) time.Time {
	if zone == "" || zone == "UTC" {
		return instant
	}
	loc, ok := LookupZone(zone)
	if !ok {
		return instant
	}
	return instant.In(loc)
}

// Localize maps a zone-less wall clock value to an instant in loc.
//
// Wall clocks skipped by a forward transition are read with the offset that
// was in effect before the gap, which lands them one gap-length later than
// written. Wall clocks repeated by a backward transition resolve to the
// daylight-saving occurrence when preferDaylight is set and to the standard
// occurrence otherwise.
func Localize(wall civil.DateTime, loc *time.Location, preferDaylight bool) time.Time {
	nominal := wall.In(time.UTC)
	before := offsetAt(nominal.Add(-24*time.Hour), loc)
	after := offsetAt(nominal.Add(24*time.Hour), loc)

	offsets := []int{before}
	if after != before {
		offsets = append(offsets, after)
	}

	var candidates []time.Time
	for _, off := range offsets {
		instant := nominal.Add(-time.Duration(off) * time.Second)
		if offsetAt(instant, loc) == off {
			candidates = append(candidates, instant)
		}
	}

	switch len(candidates) {
	case 0:
		return nominal.Add(-time.Duration(before) * time.Second).UTC()
	case 1:
		return candidates[0].UTC()
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	for _, c := range candidates {
		if c.In(loc).IsDST() == preferDaylight {
			return c.UTC()
		}
	}
	// Zones without a DST marker: the earlier occurrence carries the larger offset.
	if preferDaylight {
		return candidates[0].UTC()
	}
	return candidates[len(candidates)-1].UTC()
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off
}
