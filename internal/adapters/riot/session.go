// Package riot talks to the game client's local endpoint and the vendor's
// regional web service: session discovery, authenticated gateways, presence
// resolution and roster fetching.
package riot

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

// platformToken mimics the official client's platform identity header.
const platformToken = "ew0KCSJwbGF0Zm9ybVR5cGUiOiAiUEMiLA0KCSJwbGF0Zm9ybU9TIjogIldpbmRvd3MiLA0KCSJwbGF0Zm9ybU9TVmVyc2lvbiI6ICIxMC4wLjE5MDQyLjEuMjU2LjY0Yml0IiwNCgkicGxhdGZvcm1DaGlwc2V0IjogIlVua25vd24iDQp9"

// fallbackClientVersion is used until the public version endpoint answers.
const fallbackClientVersion = "release-05.04-shipping-9-752985"

const defaultRequestTimeout = 5 * time.Second

// glzPattern matches the regional host the game client logs on startup.
var glzPattern = regexp.MustCompile(`https://glz-(.+?)-1\.(.+?)\.a\.pvp\.net`)

// Session is one authenticated connection to the local game client plus the
// routing facts derived from it. Token fields are either all present or the
// session is treated as absent; partial credential state is never used.
type Session struct {
	LocalBaseURL  string
	PUUID         string
	BasicAuth     string
	AccessToken   string
	Entitlements  string
	ClientVersion string
	Region        string
	Shard         string
	GlzURL        string
	PDURL         string
	TokenExpiry   time.Time
}

// Ready reports whether the session can authenticate requests.
func (s *Session) Ready() bool {
	return s != nil && s.LocalBaseURL != "" && s.PUUID != "" &&
		s.AccessToken != "" && s.Entitlements != ""
}

// RemoteBaseURL returns the regional host, preferring the one discovered in
// the client logs over the shard-derived default.
func (s *Session) RemoteBaseURL() string {
	if s.GlzURL != "" {
		return s.GlzURL
	}
	return fmt.Sprintf("https://glz-%s-1.%s.a.pvp.net", s.Region, s.Shard)
}

// PDBaseURL returns the player-data host used by the name service.
func (s *Session) PDBaseURL() string {
	if s.PDURL != "" {
		return s.PDURL
	}
	region := s.Region
	if region == "" {
		region = "eu"
	}
	return fmt.Sprintf("https://pd.%s.a.pvp.net", region)
}

// DeriveShard maps a region code to its shard. The mapping is exact: it
// decides which regional host is contacted.
func DeriveShard(region string) string {
	switch region {
	case "na", "latam", "br":
		return "na"
	case "ap", "kr":
		return region
	default:
		return "eu"
	}
}

// Store owns the Session lifecycle: discovery, validation and reactive
// refresh. Establish failures are ordinary returns since the game client
// may simply not be running.
type Store struct {
	mu      sync.RWMutex
	session *Session

	lockfilePath string
	logPath      string
	versionURL   string
	remoteHost   string
	pdHost       string
	timeout      time.Duration

	local  *http.Client // accepts the local endpoint's self-signed certificate
	public *http.Client

	log logger.Logger
}

// StoreOption applies a configuration option to the Store.
type StoreOption func(*Store)

// WithLockfilePath overrides the discovered lockfile location.
func WithLockfilePath(path string) StoreOption {
	return func(s *Store) {
		if path != "" {
			s.lockfilePath = path
		}
	}
}

// WithClientLogPath overrides the game log scanned for the remote host.
func WithClientLogPath(path string) StoreOption {
	return func(s *Store) {
		if path != "" {
			s.logPath = path
		}
	}
}

// WithRemoteHost forces the regional remote base URL, taking precedence
// over the log-discovered host and the shard-derived default.
func WithRemoteHost(url string) StoreOption {
	return func(s *Store) {
		s.remoteHost = url
	}
}

// WithPDHost forces the player-data host used by the name service.
func WithPDHost(url string) StoreOption {
	return func(s *Store) {
		s.pdHost = url
	}
}

// WithVersionURL overrides the public client-version endpoint.
func WithVersionURL(url string) StoreOption {
	return func(s *Store) {
		if url != "" {
			s.versionURL = url
		}
	}
}

// WithRequestTimeout bounds every HTTP call issued by the store.
func WithRequestTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(log logger.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates a session store with the given options applied.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		lockfilePath: defaultLockfilePath(),
		logPath:      defaultClientLogPath(),
		versionURL:   "https://valorant-api.com/v1/version",
		timeout:      defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("session")
	}
	s.local = &http.Client{
		Timeout: s.timeout,
		// The local endpoint uses a self-signed certificate by design; this
		// is an accepted trust boundary scoped to 127.0.0.1.
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		},
	}
	s.public = &http.Client{Timeout: s.timeout}
	return s
}

func defaultLockfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "AppData", "Local", "Riot Games", "Riot Client", "Config", "lockfile")
}

func defaultClientLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "AppData", "Local", "VALORANT", "Saved", "Logs", "ShooterGame.log")
}

// Snapshot returns a copy of the current session, or false when absent.
func (s *Store) Snapshot() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.Ready() {
		return Session{}, false
	}
	return *s.session, true
}

// Ready reports whether an authenticated session is held.
func (s *Store) Ready() bool {
	_, ok := s.Snapshot()
	return ok
}

// Invalidate drops the current session; the next Establish rebuilds it.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

// Establish discovers the local handshake, derives credentials and routing
// facts, and validates them with one authenticated call. On failure the
// session stays absent.
func (s *Store) Establish(ctx context.Context) error {
	port, password, protocol, err := readLockfile(s.lockfilePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	next := &Session{
		LocalBaseURL:  fmt.Sprintf("%s://127.0.0.1:%s", protocol, port),
		BasicAuth:     "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+password)),
		ClientVersion: fallbackClientVersion,
	}

	// The entitlements call doubles as the validity check.
	if err := s.fetchEntitlements(ctx, next); err != nil {
		return err
	}

	s.fetchRegion(ctx, next)
	next.PDURL = s.pdHost
	if s.remoteHost != "" {
		next.GlzURL = s.remoteHost
	} else if next.GlzURL = scanClientLog(s.logPath); next.GlzURL != "" {
		s.log.Info(ctx, "remote host found in client logs", logger.String("url", next.GlzURL))
	}
	s.fetchClientVersion(ctx, next)

	s.mu.Lock()
	s.session = next
	s.mu.Unlock()

	s.log.Info(ctx, "session established",
		logger.String("base_url", next.LocalBaseURL),
		logger.String("region", next.Region),
		logger.String("shard", next.Shard),
	)
	return nil
}

// Refresh re-runs only the entitlements exchange to obtain a fresh token
// pair after a 401/403. All new fields are assembled before the swap so a
// failed refresh never leaves partial credentials behind.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	cur := s.session
	s.mu.RUnlock()
	if !cur.Ready() {
		return ErrNoSession
	}

	next := *cur
	if err := s.fetchEntitlements(ctx, &next); err != nil {
		return err
	}

	s.mu.Lock()
	s.session = &next
	s.mu.Unlock()
	s.log.Info(ctx, "credentials refreshed", logger.String("puuid", next.PUUID))
	return nil
}

// readLockfile parses the "name:pid:port:password:protocol" handshake file.
func readLockfile(path string) (port, password, protocol string, err error) {
	if path == "" {
		return "", "", "", fmt.Errorf("lockfile path not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", "", err
	}
	parts := strings.Split(strings.TrimSpace(string(data)), ":")
	if len(parts) < 5 {
		return "", "", "", fmt.Errorf("unexpected lockfile format")
	}
	return parts[2], parts[3], parts[4], nil
}

type entitlementsResponse struct {
	Subject     string `json:"subject"`
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

func (s *Store) fetchEntitlements(ctx context.Context, sess *Session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sess.LocalBaseURL+"/entitlements/v1/token", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", sess.BasicAuth)

	resp, err := s.local.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Gateway: "local", Status: resp.StatusCode, Kind: classifyStatus(resp.StatusCode)}
	}

	var ent entitlementsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if ent.Subject == "" || ent.AccessToken == "" || ent.Token == "" {
		return fmt.Errorf("%w: incomplete entitlements", ErrMalformed)
	}

	sess.PUUID = ent.Subject
	sess.AccessToken = ent.AccessToken
	sess.Entitlements = ent.Token
	sess.TokenExpiry = tokenExpiry(ent.AccessToken)
	if !sess.TokenExpiry.IsZero() {
		s.log.Debug(ctx, "access token parsed", logger.Any("expires", sess.TokenExpiry))
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// token is vendor-issued and only inspected for observability.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

type externalSession struct {
	ProductID           string `json:"productId"`
	LaunchConfiguration struct {
		Arguments []string `json:"arguments"`
	} `json:"launchConfiguration"`
}

// fetchRegion inspects the active-session listing for the game product and
// extracts the deployment region. Failures default to eu/eu.
func (s *Store) fetchRegion(ctx context.Context, sess *Session) {
	sess.Region, sess.Shard = "eu", "eu"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sess.LocalBaseURL+"/product-session/v1/external-sessions", nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", sess.BasicAuth)

	resp, err := s.local.Do(req)
	if err != nil {
		s.log.Warn(ctx, "region lookup failed; defaulting to eu", logger.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Warn(ctx, "region lookup failed; defaulting to eu", logger.Int("status", resp.StatusCode))
		return
	}

	var sessions map[string]externalSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return
	}
	for _, es := range sessions {
		if es.ProductID != "valorant" {
			continue
		}
		for _, arg := range es.LaunchConfiguration.Arguments {
			if !strings.Contains(arg, "-ares-deployment") {
				continue
			}
			if _, region, found := strings.Cut(arg, "="); found && region != "" {
				sess.Region = region
				sess.Shard = DeriveShard(region)
				return
			}
		}
	}
}

// scanClientLog looks for the regional host the game client logged.
func scanClientLog(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return glzPattern.FindString(string(data))
}

type versionResponse struct {
	Data struct {
		RiotClientVersion string `json:"riotClientVersion"`
	} `json:"data"`
}

func (s *Store) fetchClientVersion(ctx context.Context, sess *Session) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.versionURL, nil)
	if err != nil {
		return
	}
	resp, err := s.public.Do(req)
	if err != nil {
		s.log.Warn(ctx, "client version fetch failed", logger.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return
	}
	if v.Data.RiotClientVersion != "" {
		sess.ClientVersion = v.Data.RiotClientVersion
	}
}
