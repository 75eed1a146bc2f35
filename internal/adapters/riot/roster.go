package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
	"github.com/vaccie/valoverlay-discord/pkg/metrics"
)

// Fetcher retrieves match rosters with a local-then-remote fallback per
// phase. The fallback chain is data: an ordered list of phase shapes tried
// against both gateways until one yields entries.
type Fetcher struct {
	store  *Store
	local  *Gateway
	remote *Gateway
	log    logger.Logger
}

// NewFetcher creates a roster fetcher over the two gateways.
func NewFetcher(store *Store, local, remote *Gateway, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Named("roster")
	}
	return &Fetcher{store: store, local: local, remote: remote, log: log}
}

// phaseShape describes the endpoint pair and extraction layout of one phase.
// The extraction shape is a field-path detail, not a different algorithm.
type phaseShape struct {
	phase      model.MatchPhase
	playerPath string // relative path; %s is the local player id
	matchPath  string // relative path; %s is the match/party id
	idField    string
	extract    func(json.RawMessage) ([]model.RosterEntry, error)
}

var shapes = map[model.MatchPhase]phaseShape{
	model.PhaseInMatch: {
		phase:      model.PhaseInMatch,
		playerPath: "/core-game/v1/players/%s",
		matchPath:  "/core-game/v1/matches/%s",
		idField:    "MatchID",
		extract:    extractCoreGame,
	},
	model.PhasePreMatch: {
		phase:      model.PhasePreMatch,
		playerPath: "/pre-game/v1/players/%s",
		matchPath:  "/pre-game/v1/matches/%s",
		idField:    "MatchID",
		extract:    extractPreGame,
	},
	model.PhaseMenu: {
		phase:      model.PhaseMenu,
		playerPath: "/parties/v1/players/%s",
		matchPath:  "/parties/v1/parties/%s",
		idField:    "PartyID",
		extract:    extractParty,
	},
}

// fallbackOrder is the fixed trial order used when the phase is unknown and
// as the fall-through after a known phase fails.
var fallbackOrder = []model.MatchPhase{model.PhaseInMatch, model.PhasePreMatch, model.PhaseMenu}

// trials builds the ordered trial list: the resolved phase first, then the
// remaining phases in the fixed order.
func trials(phase model.MatchPhase) []phaseShape {
	out := make([]phaseShape, 0, len(fallbackOrder))
	if shape, ok := shapes[phase]; ok {
		out = append(out, shape)
	}
	for _, p := range fallbackOrder {
		if p == phase {
			continue
		}
		out = append(out, shapes[p])
	}
	return out
}

// FetchRoster returns the participants of whichever phase roster answers
// first, or an empty list when every trial fails. Empty means "no data this
// cycle", never an error.
func (f *Fetcher) FetchRoster(ctx context.Context, phase model.MatchPhase) []model.RosterEntry {
	for _, shape := range trials(phase) {
		entries, err := f.fetchPhase(ctx, shape)
		if err != nil {
			f.log.Debug(ctx, "phase trial failed",
				logger.String("phase", shape.phase.String()),
				logger.Error(err),
			)
			continue
		}
		if len(entries) > 0 {
			return entries
		}
	}
	return nil
}

// LocalCharacter locates only the local player's own entry within whichever
// roster answers, using the same trial structure as FetchRoster. Returns ""
// when the player is in no discoverable match.
func (f *Fetcher) LocalCharacter(ctx context.Context, phase model.MatchPhase) string {
	sess, ok := f.store.Snapshot()
	if !ok {
		return ""
	}
	for _, shape := range trials(phase) {
		entries, err := f.fetchPhase(ctx, shape)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.PlayerID == sess.PUUID && e.CharacterID != "" {
				return e.CharacterID
			}
		}
	}
	return ""
}

// fetchPhase runs the two-step fetch for one phase: local gateway first, and
// on any local failure the remote equivalent with refresh-and-retry-once.
func (f *Fetcher) fetchPhase(ctx context.Context, shape phaseShape) ([]model.RosterEntry, error) {
	entries, localErr := f.fetchVia(ctx, f.local, shape, false)
	if localErr == nil {
		return entries, nil
	}
	entries, remoteErr := f.fetchVia(ctx, f.remote, shape, true)
	if remoteErr == nil {
		return entries, nil
	}
	return nil, fmt.Errorf("local: %w; remote: %w", localErr, remoteErr)
}

// fetchVia performs the dependent call pair on one gateway: resolve the
// match/party id for the local player, then fetch the full document.
func (f *Fetcher) fetchVia(ctx context.Context, g *Gateway, shape phaseShape, allowRefresh bool) ([]model.RosterEntry, error) {
	sess, ok := f.store.Snapshot()
	if !ok {
		return nil, ErrNoSession
	}

	raw, err := f.call(ctx, g, fmt.Sprintf(shape.playerPath, sess.PUUID), allowRefresh)
	if err != nil {
		return nil, err
	}

	var ids map[string]any
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	id, _ := ids[shape.idField].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: no %s", ErrNotFound, shape.idField)
	}

	raw, err = f.call(ctx, g, fmt.Sprintf(shape.matchPath, id), allowRefresh)
	if err != nil {
		return nil, err
	}
	return shape.extract(raw)
}

// call issues one gateway request. When allowed, a 401/403 triggers exactly
// one credential refresh and a single retry of the same call; a second
// failure is terminal for the current trial phase.
func (f *Fetcher) call(ctx context.Context, g *Gateway, path string, allowRefresh bool) (json.RawMessage, error) {
	raw, err := g.Call(ctx, "GET", path, nil)
	if err == nil || !allowRefresh || !errors.Is(err, ErrUnauthorized) {
		return raw, err
	}

	f.log.Info(ctx, "token expired; refreshing", logger.String("gateway", g.Name()))
	metrics.RecordTokenRefresh()
	if refreshErr := f.store.Refresh(ctx); refreshErr != nil {
		return nil, fmt.Errorf("refresh failed: %w", refreshErr)
	}
	return g.Call(ctx, "GET", path, nil)
}

// Extraction shapes. Each converts a schema-specific document into the
// common roster entry list.

type corePlayer struct {
	Subject     string `json:"Subject"`
	CharacterID string `json:"CharacterID"`
}

func toEntries(players []corePlayer) []model.RosterEntry {
	entries := make([]model.RosterEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, model.RosterEntry{PlayerID: p.Subject, CharacterID: p.CharacterID})
	}
	return entries
}

// extractCoreGame reads the flat in-match player list.
func extractCoreGame(raw json.RawMessage) ([]model.RosterEntry, error) {
	var doc struct {
		Players []corePlayer `json:"Players"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return toEntries(doc.Players), nil
}

// extractPreGame reads the pre-match roster nested under the ally team.
func extractPreGame(raw json.RawMessage) ([]model.RosterEntry, error) {
	var doc struct {
		AllyTeam struct {
			Players []corePlayer `json:"Players"`
		} `json:"AllyTeam"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return toEntries(doc.AllyTeam.Players), nil
}

// extractParty reads the menu-time party member list.
func extractParty(raw json.RawMessage) ([]model.RosterEntry, error) {
	var doc struct {
		Members []corePlayer `json:"Members"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return toEntries(doc.Members), nil
}
