// Package sina adapts the Sina hq quote API, the last resort in the
// fallback chain. Quotes and indices only; payloads arrive GBK-encoded.
package sina

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/http"
	"StockSentinel/pkg/util"
)

const quoteURL = "https://hq.sinajs.cn/"

// Positions in the comma-separated hq payload.
const (
	fieldName      = 0
	fieldOpen      = 1
	fieldPrevClose = 2
	fieldPrice     = 3
	fieldHigh      = 4
	fieldLow       = 5
	fieldVolume    = 8
	minQuoteFields = 10
)

type Source struct {
	client *http.Client

	quoteURL string
}

func New(timeout time.Duration) *Source {
	return &Source{
		client:   http.NewClient(http.WithTimeout(timeout)),
		quoteURL: quoteURL,
	}
}

func (s *Source) Name() string { return "sina" }

func symbol(code string) string {
	if code == "" {
		return "sz000000"
	}
	switch code[0] {
	case '6', '5', '9':
		return "sh" + code
	default:
		return "sz" + code
	}
}

func (s *Source) get(ctx context.Context, list string) (string, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &http.RequestOptions{
		Method:      http.MethodGet,
		URL:         s.quoteURL,
		QueryParams: map[string][]string{"list": {list}},
		Headers:     map[string]string{"Referer": "https://finance.sina.com.cn"},
	}, &body)
	if err != nil {
		return "", err
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("sina gbk decode: %w", err)
	}
	return string(decoded), nil
}

func payloadOf(line string) (string, bool) {
	start := strings.Index(line, "\"")
	end := strings.LastIndex(line, "\"")
	if start < 0 || end <= start+1 {
		return "", false
	}
	return line[start+1 : end], true
}

// FetchSingleQuote reads one instrument's hq line. Sina reports volume
// in shares; it is converted to lots to match the other providers. The
// percent change is derived from the previous close, and turnover rate
// is not available here.
func (s *Source) FetchSingleQuote(ctx context.Context, code string) (*models.Quote, error) {
	body, err := s.get(ctx, symbol(code))
	if err != nil {
		return nil, fmt.Errorf("sina quote %s: %w", code, err)
	}
	payload, ok := payloadOf(body)
	if !ok {
		return nil, repository.ErrEmpty
	}
	fields := strings.Split(payload, ",")
	if len(fields) < minQuoteFields {
		return nil, repository.ErrEmpty
	}

	price := util.ParseFloatDefault(fields[fieldPrice], 0)
	prevClose := util.ParseFloatDefault(fields[fieldPrevClose], 0)
	if price == 0 || prevClose == 0 {
		return nil, repository.ErrEmpty
	}

	return &models.Quote{
		Code:      code,
		Name:      fields[fieldName],
		Price:     price,
		PctChange: (price - prevClose) / prevClose * 100,
		Open:      util.ParseFloatDefault(fields[fieldOpen], 0),
		High:      util.ParseFloatDefault(fields[fieldHigh], 0),
		Low:       util.ParseFloatDefault(fields[fieldLow], 0),
		Volume:    util.ParseFloatDefault(fields[fieldVolume], 0) / 100,
	}, nil
}

// FetchIndexQuotes reads the condensed s_ index lines.
func (s *Source) FetchIndexQuotes(ctx context.Context) ([]models.IndexQuote, error) {
	body, err := s.get(ctx, "s_sh000001,s_sz399001,s_sz399006")
	if err != nil {
		return nil, fmt.Errorf("sina indices: %w", err)
	}
	var out []models.IndexQuote
	for _, line := range strings.Split(body, ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		payload, ok := payloadOf(line)
		if !ok {
			continue
		}
		// name, current, change, pct, volume, amount
		fields := strings.Split(payload, ",")
		if len(fields) < 4 {
			continue
		}
		out = append(out, models.IndexQuote{
			Code:      indexCode(line),
			Name:      fields[0],
			Current:   util.ParseFloatDefault(fields[1], 0),
			ChangePct: util.ParseFloatDefault(fields[3], 0),
		})
	}
	if len(out) == 0 {
		return nil, repository.ErrEmpty
	}
	return out, nil
}

// indexCode extracts "000001" from "var hq_str_s_sh000001=...".
func indexCode(line string) string {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return ""
	}
	name := line[:eq]
	if i := strings.LastIndexAny(name, "hz"); i >= 0 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}

// FetchSpotBatch is not offered: hq serves explicit code lists only.
func (s *Source) FetchSpotBatch(ctx context.Context) ([]models.Quote, error) {
	return nil, repository.ErrUnsupported
}

// FetchBars is not offered by this provider.
func (s *Source) FetchBars(ctx context.Context, code string, count int) (models.BarSeries, error) {
	return nil, repository.ErrUnsupported
}

// FetchNews is not offered by this provider.
func (s *Source) FetchNews(ctx context.Context, code string, count int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

// FetchMacroNews is not offered by this provider.
func (s *Source) FetchMacroNews(ctx context.Context, count int) (*models.MacroNews, error) {
	return nil, repository.ErrUnsupported
}
