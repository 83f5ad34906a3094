package listing

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TakaneWatch/internal/model"
)

// Source supplies the universe of eligible symbols.
type Source interface {
	List() ([]model.Listing, error)
}

// HTTPSource fetches the exchange listing as CSV and keeps only the
// configured market segments. The JPX sheet carries Japanese headers;
// plain code/name/market headers are accepted too.
type HTTPSource struct {
	URL      string
	Segments []string
	Client   *http.Client
}

// DefaultSegments are the three current TSE market segments.
var DefaultSegments = []string{"プライム", "スタンダード", "グロース"}

// NewHTTPSource creates a listing source with optional proxy support.
func NewHTTPSource(listURL string, segments []string, proxyURL string) *HTTPSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if len(segments) == 0 {
		segments = DefaultSegments
	}
	return &HTTPSource{
		URL:      listURL,
		Segments: segments,
		Client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

func (s *HTTPSource) List() ([]model.Listing, error) {
	req, err := http.NewRequest("GET", s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: status %d", resp.StatusCode)
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse listing csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("listing csv has no data rows")
	}

	codeCol, nameCol, marketCol, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var listings []model.Listing
	for _, row := range rows[1:] {
		if len(row) <= codeCol || len(row) <= nameCol || len(row) <= marketCol {
			continue
		}
		l := model.Listing{
			Code:   strings.TrimSpace(row[codeCol]),
			Name:   strings.TrimSpace(row[nameCol]),
			Market: strings.TrimSpace(row[marketCol]),
		}
		if l.Code == "" || !s.eligible(l.Market) {
			continue
		}
		listings = append(listings, l)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("listing csv matched no eligible symbols")
	}
	return listings, nil
}

func (s *HTTPSource) eligible(market string) bool {
	for _, seg := range s.Segments {
		if strings.Contains(market, seg) {
			return true
		}
	}
	return false
}

func locateColumns(header []string) (code, name, market int, err error) {
	code, name, market = -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "コード", "code":
			code = i
		case "銘柄名", "name":
			name = i
		case "市場・商品区分", "market":
			market = i
		}
	}
	if code < 0 || name < 0 || market < 0 {
		return 0, 0, 0, fmt.Errorf("listing csv: unrecognized header %v", header)
	}
	return code, name, market, nil
}
