package riot_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaccie/valoverlay-discord/internal/adapters/riot"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const testPUUID = "me-puuid"

// harness stands in for the local game client (TLS, self-signed) and the
// remote regional service (plain HTTP), with a lockfile pointing at the
// local server's port.
type harness struct {
	local            *http.ServeMux
	remote           *http.ServeMux
	localSrv         *httptest.Server
	remoteSrv        *httptest.Server
	store            *riot.Store
	entitlementCalls atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		local:  http.NewServeMux(),
		remote: http.NewServeMux(),
	}

	h.local.HandleFunc("/entitlements/v1/token", func(w http.ResponseWriter, r *http.Request) {
		n := h.entitlementCalls.Add(1)
		writeDoc(w, map[string]string{
			"subject":     testPUUID,
			"accessToken": fmt.Sprintf("access-%d", n),
			"token":       "ent-jwt",
		})
	})
	h.local.HandleFunc("/product-session/v1/external-sessions", func(w http.ResponseWriter, r *http.Request) {
		writeDoc(w, map[string]any{
			"host_app": map[string]any{
				"productId": "valorant",
				"launchConfiguration": map[string]any{
					"arguments": []string{"--launch-product=valorant", "-ares-deployment=na"},
				},
			},
		})
	})

	h.localSrv = httptest.NewTLSServer(h.local)
	h.remoteSrv = httptest.NewServer(h.remote)
	t.Cleanup(h.localSrv.Close)
	t.Cleanup(h.remoteSrv.Close)

	u, err := url.Parse(h.localSrv.URL)
	if err != nil {
		t.Fatalf("parse local server url: %v", err)
	}
	dir := t.TempDir()
	lockfile := filepath.Join(dir, "lockfile")
	content := "Riot Client:1234:" + u.Port() + ":secret:https"
	if err := os.WriteFile(lockfile, []byte(content), 0o600); err != nil {
		t.Fatalf("write lockfile: %v", err)
	}

	h.store = riot.NewStore(
		riot.WithLockfilePath(lockfile),
		riot.WithClientLogPath(filepath.Join(dir, "absent.log")),
		riot.WithRemoteHost(h.remoteSrv.URL),
		riot.WithPDHost(h.remoteSrv.URL),
		riot.WithVersionURL(h.remoteSrv.URL+"/version"),
		riot.WithRequestTimeout(2*time.Second),
	)
	return h
}

func (h *harness) fetcher(t *testing.T) *riot.Fetcher {
	t.Helper()
	local := riot.NewLocalGateway(h.store, 2*time.Second)
	remote := riot.NewRemoteGateway(h.store, 2*time.Second)
	return riot.NewFetcher(h.store, local, remote, nil)
}

func writeDoc(w http.ResponseWriter, doc any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func writeStatus(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}
