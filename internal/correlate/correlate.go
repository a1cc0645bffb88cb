package correlate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/config"
	"github.com/xivstats/collector/internal/stats"
)

// Rules are the operator's inclusion decisions, derived from config.
type Rules struct {
	included   map[uint64]bool
	includeOrg map[uint64]bool
}

func RulesFromConfig(chars []config.CharacterInfo) Rules {
	r := Rules{
		included:   make(map[uint64]bool, len(chars)),
		includeOrg: make(map[uint64]bool, len(chars)),
	}
	for _, c := range chars {
		r.included[c.ID] = true
		if c.IncludeOrganization {
			r.includeOrg[c.ID] = true
		}
	}
	return r
}

func (r Rules) Included(id uint64) bool            { return r.included[id] }
func (r Rules) IncludesOrganization(id uint64) bool { return r.includeOrg[id] }

// ConflictError reports an organization claimed by more than one included
// player. Fleet data for it is withheld until the operator picks one
// claimant; everything else in the poll proceeds.
type ConflictError struct {
	OrganizationID uint64
	Claimants      []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("organization %016x claimed by multiple included characters: %s",
		e.OrganizationID, strings.Join(e.Claimants, ", "))
}

// Input is everything one poll gathered before correlation.
type Input struct {
	Characters  []stats.Character
	Currencies  func(characterID uint64) stats.Currencies
	Fleets      map[uint64][]stats.FleetVehicle // keyed by owning player id
	Progression map[uint64]stats.ProgressionRecord
	Credits     map[uint64]stats.CreditRecord
	FilterItems func(filterName string) []stats.FilterRow
	Filters     []string
	Rules       Rules
}

// Engine joins the per-subsystem snapshots into one StatisticsUpdate.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log}
}

// Build applies the inclusion rules. It errors only when no characters
// resolved at all, which means the inventory subsystem has nothing to say
// and emitting would produce an empty, misleading batch.
func (e *Engine) Build(in Input) (*stats.StatisticsUpdate, []*ConflictError, error) {
	if len(in.Characters) == 0 {
		return nil, nil, errors.New("no characters resolved")
	}

	byID := make(map[uint64]stats.Character, len(in.Characters))
	for _, ch := range in.Characters {
		byID[ch.ID] = ch
	}

	// Organizations become eligible through an included player that opts its
	// organization in. Track every claimant so a double claim can be named.
	claimants := make(map[uint64][]stats.Character)
	for _, ch := range in.Characters {
		if ch.Kind != stats.KindPlayer || !in.Rules.Included(ch.ID) {
			continue
		}
		if ch.OrganizationID != 0 && in.Rules.IncludesOrganization(ch.ID) {
			claimants[ch.OrganizationID] = append(claimants[ch.OrganizationID], ch)
		}
	}

	var conflicts []*ConflictError
	conflicted := make(map[uint64]bool)
	for orgID, players := range claimants {
		if len(players) < 2 {
			continue
		}
		names := make([]string, len(players))
		for i, p := range players {
			names[i] = p.Name
		}
		sort.Strings(names)
		conflicted[orgID] = true
		conflicts = append(conflicts, &ConflictError{OrganizationID: orgID, Claimants: names})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].OrganizationID < conflicts[j].OrganizationID
	})

	update := &stats.StatisticsUpdate{
		Currencies:      make(map[stats.Character]stats.Currencies),
		Fleets:          make(map[stats.Character][]stats.FleetVehicle),
		Progression:     make(map[stats.Character]stats.ProgressionRecord),
		Credits:         make(map[uint64]stats.CreditRecord),
		InventoryItems:  make(map[string][]stats.FilterRow),
		TagOrganization: make(map[uint64]bool),
	}

	included := make(map[uint64]bool)
	for _, ch := range in.Characters {
		switch ch.Kind {
		case stats.KindPlayer:
			if !in.Rules.Included(ch.ID) {
				continue
			}
			if in.Rules.IncludesOrganization(ch.ID) && ch.OrganizationID != 0 {
				update.TagOrganization[ch.ID] = true
			}
			if rec, ok := in.Progression[ch.ID]; ok {
				update.Progression[ch] = rec
			}
		case stats.KindRetainer:
			if !in.Rules.Included(ch.OwnerID) {
				continue
			}
		case stats.KindOrganizationChest:
			if len(claimants[ch.ID]) == 0 {
				continue
			}
		default:
			continue
		}
		included[ch.ID] = true
		update.Currencies[ch] = in.Currencies(ch.ID)
	}

	// Fleets hang off the organization chest, reached through the single
	// claimant player's id. A conflicted organization keeps its chest and
	// credit balance but its fleet is withheld.
	for orgID, players := range claimants {
		if rec, ok := in.Credits[orgID]; ok {
			update.Credits[orgID] = rec
		}
		if conflicted[orgID] {
			continue
		}
		chest, ok := byID[orgID]
		if !ok || chest.Kind != stats.KindOrganizationChest {
			continue
		}
		if vehicles := in.Fleets[players[0].ID]; len(vehicles) > 0 {
			update.Fleets[chest] = vehicles
		}
	}

	if in.FilterItems != nil {
		for _, name := range in.Filters {
			var rows []stats.FilterRow
			for _, row := range in.FilterItems(name) {
				if included[row.CharacterID] {
					rows = append(rows, row)
				}
			}
			if len(rows) > 0 {
				update.InventoryItems[name] = rows
			}
		}
	}

	return update, conflicts, nil
}
