package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
)

// HTTPSource fetches movie metadata from the catalog service's REST API.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPSource(baseURL, apiKey string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) FetchMovie(ctx context.Context, movieID string) (domain.MovieRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/movie/"+movieID, nil)
	if err != nil {
		return domain.MovieRef{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.MovieRef{}, errors.Wrap(err, "catalog request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.MovieRef{}, domain.ErrMovieNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.MovieRef{}, errors.Newf("catalog returned %d", resp.StatusCode)
	}

	var body struct {
		ID          json.Number `json:"id"`
		Title       string      `json:"title"`
		Overview    string      `json:"overview"`
		PosterPath  string      `json:"poster_path"`
		ReleaseDate string      `json:"release_date"`
		Runtime     int         `json:"runtime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.MovieRef{}, errors.Wrap(err, "decode catalog response")
	}

	return domain.MovieRef{
		ID:          movieID,
		Title:       body.Title,
		Overview:    body.Overview,
		PosterPath:  body.PosterPath,
		ReleaseDate: body.ReleaseDate,
		Runtime:     body.Runtime,
	}, nil
}
