package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

// AssetStore holds the character-id to icon-URL table from the public
// reference endpoint. It is fetched once at startup and re-fetched on later
// establish attempts while still empty.
type AssetStore struct {
	mu    sync.RWMutex
	icons map[string]string

	url    string
	client *http.Client
	log    logger.Logger
}

// AssetOption applies a configuration option to the AssetStore.
type AssetOption func(*AssetStore)

// WithAssetsURL overrides the reference data endpoint.
func WithAssetsURL(url string) AssetOption {
	return func(a *AssetStore) {
		if url != "" {
			a.url = url
		}
	}
}

// WithAssetTimeout bounds the reference data fetch.
func WithAssetTimeout(d time.Duration) AssetOption {
	return func(a *AssetStore) {
		if d > 0 {
			a.client.Timeout = d
		}
	}
}

// WithAssetLogger sets a custom logger.
func WithAssetLogger(log logger.Logger) AssetOption {
	return func(a *AssetStore) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAssetStore creates an empty asset store.
func NewAssetStore(opts ...AssetOption) *AssetStore {
	a := &AssetStore{
		icons:  map[string]string{},
		url:    "https://valorant-api.com/v1/agents",
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Named("assets")
	}
	return a
}

type agentListing struct {
	Data []struct {
		UUID        string `json:"uuid"`
		DisplayIcon string `json:"displayIcon"`
	} `json:"data"`
}

// Ensure fetches the icon table when it is still empty. Safe to call on
// every establish attempt.
func (a *AssetStore) Ensure(ctx context.Context) error {
	if a.Size() > 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Gateway: "assets", Status: resp.StatusCode, Kind: classifyStatus(resp.StatusCode)}
	}

	var listing agentListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	icons := make(map[string]string, len(listing.Data))
	for _, agent := range listing.Data {
		if agent.UUID != "" && agent.DisplayIcon != "" {
			icons[strings.ToLower(agent.UUID)] = agent.DisplayIcon
		}
	}

	a.mu.Lock()
	a.icons = icons
	a.mu.Unlock()
	a.log.Info(ctx, "character icons loaded", logger.Int("count", len(icons)))
	return nil
}

// Icon returns the display icon URL for a character id, or "" for the
// all-zero sentinel and unknown ids.
func (a *AssetStore) Icon(characterID string) string {
	if characterID == "" || characterID == model.EmptyCharacterID {
		return ""
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.icons[strings.ToLower(characterID)]
}

// Size returns the number of known characters.
func (a *AssetStore) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.icons)
}
