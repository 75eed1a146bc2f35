package riot

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

type presenceList struct {
	Presences []presenceEntry `json:"presences"`
}

type presenceEntry struct {
	PUUID   string `json:"puuid"`
	Private string `json:"private"`
}

type privatePresence struct {
	SessionLoopState string `json:"sessionLoopState"`
}

// ResolvePhase determines which phase the local player is in from the chat
// presence listing. Presence is advisory: every failure maps to
// PhaseUnknown and the roster fetch falls back across all phases.
func (f *Fetcher) ResolvePhase(ctx context.Context) model.MatchPhase {
	sess, ok := f.store.Snapshot()
	if !ok {
		return model.PhaseUnknown
	}

	raw, err := f.local.Call(ctx, "GET", "/chat/v4/presences", nil)
	if err != nil {
		f.log.Debug(ctx, "presence fetch failed", logger.Error(err))
		return model.PhaseUnknown
	}

	var list presenceList
	if err := json.Unmarshal(raw, &list); err != nil {
		return model.PhaseUnknown
	}

	for _, entry := range list.Presences {
		if entry.PUUID != sess.PUUID || entry.Private == "" {
			continue
		}
		priv, ok := decodePrivate(entry.Private)
		if !ok {
			return model.PhaseUnknown
		}
		switch priv.SessionLoopState {
		case "INGAME":
			return model.PhaseInMatch
		case "PREGAME":
			return model.PhasePreMatch
		case "MENUS":
			return model.PhaseMenu
		default:
			return model.PhaseUnknown
		}
	}
	return model.PhaseUnknown
}

// decodePrivate base64-decodes and parses the embedded private payload.
func decodePrivate(encoded string) (privatePresence, bool) {
	var priv privatePresence
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return priv, false
	}
	if err := json.Unmarshal(data, &priv); err != nil {
		return priv, false
	}
	return priv, true
}
