package riot

import (
	"context"
	"encoding/json"

	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

type nameServiceEntry struct {
	Subject  string `json:"Subject"`
	GameName string `json:"GameName"`
	TagLine  string `json:"TagLine"`
}

// ResolveNames maps player ids to their full "Name#Tag" identities via the
// vendor name service. Failures yield an empty map; names are a display
// concern and never block a cycle.
func (f *Fetcher) ResolveNames(ctx context.Context, playerIDs []string) map[string]string {
	if len(playerIDs) == 0 {
		return map[string]string{}
	}
	sess, ok := f.store.Snapshot()
	if !ok {
		return map[string]string{}
	}

	raw, err := f.remote.CallURL(ctx, "PUT", sess.PDBaseURL()+"/name-service/v2/players", playerIDs)
	if err != nil {
		f.log.Debug(ctx, "name service failed", logger.Error(err))
		return map[string]string{}
	}

	var entries []nameServiceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return map[string]string{}
	}

	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.GameName != "" && e.TagLine != "" {
			names[e.Subject] = e.GameName + "#" + e.TagLine
		}
	}
	return names
}
