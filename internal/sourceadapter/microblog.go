package sourceadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
	"github.com/mplswatch/sentinel/internal/models"
)

// MicroblogFirehoseAdapter polls a NORMAL-trust social-media firehose
// API, applying the silent-account skip policy of spec.md §4.1 via an
// injected SilentAccountChecker. New adapter, same Poll(ctx)
// ([]Report, error) shape as the other adapters in this package.
type MicroblogFirehoseAdapter struct {
	name        string
	baseURL     string
	bearerToken string
	interval    time.Duration
	client      *http.Client
	silent      SilentAccountChecker
	sinceID     string
}

// NewMicroblogFirehoseAdapter builds a microblog-firehose adapter. If
// silent is nil, NoSilentAccountFilter is used.
func NewMicroblogFirehoseAdapter(name, baseURL, bearerToken string, interval time.Duration, silent SilentAccountChecker) *MicroblogFirehoseAdapter {
	if interval <= 0 {
		interval = MinCadence[KindMicroblogFirehose]
	}
	if silent == nil {
		silent = NoSilentAccountFilter{}
	}
	return &MicroblogFirehoseAdapter{
		name:        name,
		baseURL:     baseURL,
		bearerToken: bearerToken,
		interval:    interval,
		client:      &http.Client{Timeout: PollDeadline},
		silent:      silent,
	}
}

func (a *MicroblogFirehoseAdapter) Name() string           { return a.name }
func (a *MicroblogFirehoseAdapter) Kind() Kind              { return KindMicroblogFirehose }
func (a *MicroblogFirehoseAdapter) Trust() models.TrustTier { return models.TrustNormal }
func (a *MicroblogFirehoseAdapter) Interval() time.Duration { return a.interval }

type microblogPage struct {
	MaxID string         `json:"max_id"`
	Posts []microblogPost `json:"posts"`
}

type microblogPost struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Handle    string  `json:"handle"`
	CreatedAt string  `json:"created_at"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	HasGeo    bool    `json:"has_geo"`
}

// Poll fetches the latest firehose page since the adapter's stored
// since-id, dropping posts from accounts the SilentAccountChecker
// flags.
func (a *MicroblogFirehoseAdapter) Poll(ctx context.Context) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, PollDeadline)
	defer cancel()

	url := fmt.Sprintf("%s/firehose?since_id=%s", a.baseURL, a.sinceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.bearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, sentinelerrors.AdapterTransientError{Source: a.name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, sentinelerrors.AdapterPermanentError{
			Source: a.name,
			Err:    fmt.Errorf("token rejected: %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, sentinelerrors.AdapterTransientError{
			Source: a.name,
			Err:    fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, sentinelerrors.AdapterPermanentError{
			Source: a.name,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var page microblogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, sentinelerrors.AdapterTransientError{Source: a.name, Err: fmt.Errorf("decode page: %w", err)}
	}

	now := time.Now().UTC()
	reports := make([]models.Report, 0, len(page.Posts))
	for _, p := range page.Posts {
		if a.silent.IsSilent(p.Handle, now) {
			continue
		}
		obs := now
		if p.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
				obs = t.UTC()
			}
		}
		r := models.Report{
			DedupKey:      models.DedupKeyFor(a.name, p.ID),
			Source:        a.name,
			SourceKind:    string(KindMicroblogFirehose),
			Trust:         models.TrustNormal,
			ObservationTS: obs,
			IngestTS:      now,
			Content:       p.Text,
			Author:        p.Handle,
		}
		if p.HasGeo {
			r.Coords = &models.Location{Lat: p.Lat, Lon: p.Lon}
		}
		reports = append(reports, r)
	}

	if page.MaxID != "" {
		a.sinceID = page.MaxID
	}
	return reports, nil
}
