package emit

import (
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/xivstats/collector/internal/data"
	"github.com/xivstats/collector/internal/stats"
)

// Generator turns a correlated StatisticsUpdate into tagged points. The
// measurement, tag and field names are kept stable; dashboards depend on
// them.
type Generator struct {
	items  *data.ItemTable
	worlds *data.WorldTable
	jobs   *data.JobTable
}

func NewGenerator(items *data.ItemTable, worlds *data.WorldTable, jobs *data.JobTable) *Generator {
	return &Generator{items: items, worlds: worlds, jobs: jobs}
}

// Points renders one poll's batch. The timestamp is truncated to seconds so
// repeated polls within one second collapse server-side.
func (g *Generator) Points(update *stats.StatisticsUpdate, now time.Time) []*write.Point {
	ts := now.Truncate(time.Second)
	var points []*write.Point

	for ch, cur := range update.Currencies {
		switch ch.Kind {
		case stats.KindPlayer:
			points = append(points, g.playerPoints(update, ch, cur, ts)...)
		case stats.KindRetainer:
			points = append(points, g.retainerPoints(update, ch, cur, ts)...)
		case stats.KindOrganizationChest:
			points = append(points, g.chestPoint(update, ch, cur, ts))
		}
	}

	for name, rows := range update.InventoryItems {
		points = append(points, g.itemPoints(name, rows, ts)...)
	}

	for chest, vehicles := range update.Fleets {
		points = append(points, g.fleetPoints(chest, vehicles, ts)...)
	}

	return points
}

func (g *Generator) baseTags(update *stats.StatisticsUpdate, ch stats.Character) map[string]string {
	tags := map[string]string{
		"id":          stats.FormatID(ch.ID),
		"player_name": ch.Name,
		"type":        ch.Kind.String(),
	}
	if w := g.worlds.Name(ch.WorldID); w != "" {
		tags["world"] = w
	}
	if update.TagOrganization[ch.ID] && ch.OrganizationID != 0 {
		tags["fc_id"] = stats.FormatID(ch.OrganizationID)
	}
	return tags
}

func (g *Generator) playerPoints(update *stats.StatisticsUpdate, ch stats.Character, cur stats.Currencies, ts time.Time) []*write.Point {
	tags := g.baseTags(update, ch)

	points := []*write.Point{
		influxdb2.NewPoint("currency", tags, map[string]any{
			"gil":            cur.Gil,
			"ventures":       cur.Ventures,
			"ceruleum_tanks": cur.CeruleumTanks,
			"repair_kits":    cur.RepairKits,
			"free_inventory": cur.FreeSlots,
		}, ts),
	}

	rec, ok := update.Progression[ch]
	if !ok {
		return points
	}

	points = append(points, influxdb2.NewPoint("grandcompany", tags, map[string]any{
		"gc":                int64(rec.GrandCompany),
		"gc_rank":           int64(rec.GcRank),
		"seals":             grandCompanySeals(rec.GrandCompany, cur),
		"seal_cap":          sealCap(rec.GcRank),
		"squadron_unlocked": boolField(rec.SquadronUnlocked),
	}, ts))

	for _, job := range g.jobs.All() {
		if !job.TrackExp || job.ExpIndex < 0 || job.ExpIndex >= len(rec.ClassJobLevels) {
			continue
		}
		level := rec.ClassJobLevels[job.ExpIndex]
		if level <= 0 {
			continue
		}
		jobTags := cloneTags(tags)
		jobTags["job"] = job.Abbrev
		if job.DohDol {
			jobTags["job_type"] = "doh_dol"
		} else {
			jobTags["job_type"] = "battle"
		}
		points = append(points, influxdb2.NewPoint("experience", jobTags, map[string]any{
			"level": int64(level),
		}, ts))
	}

	if rec.MsqCount >= 0 {
		questTags := cloneTags(tags)
		questTags["msq_name"] = rec.MsqName
		points = append(points, influxdb2.NewPoint("quests", questTags, map[string]any{
			"msq_count": int64(rec.MsqCount),
			"msq_genre": int64(rec.MsqGenre),
		}, ts))
	}

	return points
}

func (g *Generator) retainerPoints(update *stats.StatisticsUpdate, ch stats.Character, cur stats.Currencies, ts time.Time) []*write.Point {
	tags := map[string]string{
		"id":            stats.FormatID(ch.ID),
		"player_id":     stats.FormatID(ch.OwnerID),
		"retainer_name": ch.Name,
		"type":          ch.Kind.String(),
	}
	if owner := findOwner(update, ch.OwnerID); owner != nil {
		tags["player_name"] = owner.Name
		if w := g.worlds.Name(owner.WorldID); w != "" {
			tags["world"] = w
		}
	}

	points := []*write.Point{
		influxdb2.NewPoint("currency", tags, map[string]any{
			"gil":            cur.Gil,
			"free_inventory": cur.FreeSlots,
		}, ts),
	}

	job := g.jobs.Get(ch.ClassJob)
	if job == nil || ch.Level <= 0 {
		return points
	}

	// A retainer can level only while its owner's matching job is ahead.
	ownerCap := int16(0)
	if owner := findOwner(update, ch.OwnerID); owner != nil {
		if rec, ok := update.Progression[*owner]; ok {
			if job.ExpIndex >= 0 && job.ExpIndex < len(rec.ClassJobLevels) {
				ownerCap = rec.ClassJobLevels[job.ExpIndex]
			}
		}
	}
	retTags := cloneTags(tags)
	retTags["class"] = job.Abbrev
	points = append(points, influxdb2.NewPoint("retainer", retTags, map[string]any{
		"level":               int64(ch.Level),
		"is_max_level":        boolField(ownerCap > 0 && ch.Level >= ownerCap),
		"can_reach_max_level": boolField(ownerCap > ch.Level),
		"levels_before_cap":   maxInt64(int64(ownerCap)-int64(ch.Level), 0),
	}, ts))

	return points
}

func (g *Generator) chestPoint(update *stats.StatisticsUpdate, ch stats.Character, cur stats.Currencies, ts time.Time) *write.Point {
	tags := map[string]string{
		"id":   stats.FormatID(ch.ID),
		"name": ch.Name,
		"type": ch.Kind.String(),
	}
	fields := map[string]any{
		"gil":            cur.Gil,
		"ceruleum_tanks": cur.CeruleumTanks,
		"repair_kits":    cur.RepairKits,
	}
	if rec, ok := update.Credits[ch.ID]; ok {
		fields["fccredit"] = rec.Credits
	}
	return influxdb2.NewPoint("currency", tags, fields, ts)
}

// itemPoints groups a filter's rows by (item id, hq) and values each group
// at the vendor price.
func (g *Generator) itemPoints(filterName string, rows []stats.FilterRow, ts time.Time) []*write.Point {
	type key struct {
		itemID uint32
		hq     bool
	}
	totals := make(map[key]int64)
	for _, row := range rows {
		totals[key{row.ItemID, row.HQ}] += int64(row.Quantity)
	}

	keys := make([]key, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].itemID != keys[j].itemID {
			return keys[i].itemID < keys[j].itemID
		}
		return !keys[i].hq && keys[j].hq
	})

	var points []*write.Point
	for _, k := range keys {
		info := g.items.Get(k.itemID)
		if info == nil {
			continue
		}
		quantity := totals[k]
		price := info.Price
		if k.hq || g.items.AlwaysHQ(info.UICategory) {
			price = info.HQPrice()
		}
		tags := map[string]string{
			"filter_name": filterName,
			"item_id":     stats.FormatID(uint64(k.itemID)),
			"item_name":   info.Name,
			"hq":          boolTag(k.hq),
		}
		points = append(points, influxdb2.NewPoint("items", tags, map[string]any{
			"quantity":  quantity,
			"total_gil": quantity * price,
		}, ts))
	}
	return points
}

func (g *Generator) fleetPoints(chest stats.Character, vehicles []stats.FleetVehicle, ts time.Time) []*write.Point {
	var points []*write.Point
	for _, v := range vehicles {
		tags := map[string]string{
			"id":          stats.FormatID(chest.ID),
			"fc_name":     chest.Name,
			"sub_id":      stats.FormatID(uint64(v.Index)),
			"sub_name":    v.Name,
			"part_hull":   v.Hull,
			"part_stern":  v.Stern,
			"part_bow":    v.Bow,
			"part_bridge": v.Bridge,
			"build":       v.Build,
		}
		fields := map[string]any{
			"level":           int64(v.Rank),
			"predicted_level": int64(v.PredictedRank),
			"state":           int64(v.VoyageState),
		}
		if !v.ReturnTime.IsZero() {
			fields["return_time"] = v.ReturnTime.Unix()
		}
		points = append(points, influxdb2.NewPoint("submersibles", tags, fields, ts))
	}
	return points
}

// sealCap is the holdable seal maximum for a grand company rank.
func sealCap(gcRank uint8) int64 {
	switch gcRank {
	case 1:
		return 10000
	case 2:
		return 15000
	case 3:
		return 20000
	case 4:
		return 25000
	case 5:
		return 30000
	case 6:
		return 35000
	case 7:
		return 40000
	case 8:
		return 45000
	case 9:
		return 50000
	case 10:
		return 80000
	case 11:
		return 90000
	default:
		return 0
	}
}

func grandCompanySeals(gc uint8, cur stats.Currencies) int64 {
	switch gc {
	case 1:
		return cur.GcSealsMaelstrom
	case 2:
		return cur.GcSealsTwinAdders
	case 3:
		return cur.GcSealsImmortalFlames
	default:
		return 0
	}
}

func findOwner(update *stats.StatisticsUpdate, ownerID uint64) *stats.Character {
	for ch := range update.Currencies {
		if ch.ID == ownerID && ch.Kind == stats.KindPlayer {
			owner := ch
			return &owner
		}
	}
	return nil
}

func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+2)
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func boolField(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
