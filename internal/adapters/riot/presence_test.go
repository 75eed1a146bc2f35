package riot_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
)

func presenceDoc(puuid, private string) map[string]any {
	return map[string]any{
		"presences": []map[string]string{
			{"puuid": "someone-else", "private": "aXJyZWxldmFudA=="},
			{"puuid": puuid, "private": private},
		},
	}
}

func encodePrivate(loopState string) string {
	return base64.StdEncoding.EncodeToString([]byte(`{"sessionLoopState":"` + loopState + `"}`))
}

func TestResolvePhase(t *testing.T) {
	cases := []struct {
		name    string
		private string
		want    model.MatchPhase
	}{
		{"in match", encodePrivate("INGAME"), model.PhaseInMatch},
		{"pre match", encodePrivate("PREGAME"), model.PhasePreMatch},
		{"menus", encodePrivate("MENUS"), model.PhaseMenu},
		{"unrecognized state", encodePrivate("TRANSITION"), model.PhaseUnknown},
		{"invalid base64", "!!!not-base64!!!", model.PhaseUnknown},
		{"invalid json", base64.StdEncoding.EncodeToString([]byte("{")), model.PhaseUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newHarness(t)
			h.local.HandleFunc("/chat/v4/presences", func(w http.ResponseWriter, r *http.Request) {
				writeDoc(w, presenceDoc(testPUUID, c.private))
			})
			ctx := context.Background()
			if err := h.store.Establish(ctx); err != nil {
				t.Fatalf("Establish failed: %v", err)
			}

			if got := h.fetcher(t).ResolvePhase(ctx); got != c.want {
				t.Errorf("ResolvePhase = %v, want %v", got, c.want)
			}
		})
	}
}

func TestResolvePhase_FetchErrorsSwallowed(t *testing.T) {
	h := newHarness(t)
	// No presences route registered: the mux answers 404.
	ctx := context.Background()
	if err := h.store.Establish(ctx); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	if got := h.fetcher(t).ResolvePhase(ctx); got != model.PhaseUnknown {
		t.Errorf("ResolvePhase on error = %v, want PhaseUnknown", got)
	}
}

func TestResolvePhase_LocalPlayerAbsent(t *testing.T) {
	h := newHarness(t)
	h.local.HandleFunc("/chat/v4/presences", func(w http.ResponseWriter, r *http.Request) {
		writeDoc(w, presenceDoc("different-puuid", encodePrivate("INGAME")))
	})
	ctx := context.Background()
	if err := h.store.Establish(ctx); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	if got := h.fetcher(t).ResolvePhase(ctx); got != model.PhaseUnknown {
		t.Errorf("ResolvePhase without own presence = %v, want PhaseUnknown", got)
	}
}
