// Package tencent adapts the Tencent gtimg quote and kline APIs. It is
// the bar-history workhorse and the first quote fallback; it has no
// full-market batch or news feeds.
package tencent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/http"
	"StockSentinel/pkg/util"
)

const (
	klineURL = "http://web.ifzq.gtimg.cn/appstock/app/fqkline/get"
	quoteURL = "http://qt.gtimg.cn/"
)

// Positions in the ~-separated qt.gtimg payload.
const (
	fieldName     = 1
	fieldPrice    = 3
	fieldOpen     = 5
	fieldPct      = 32
	fieldHigh     = 33
	fieldLow      = 34
	fieldVolume   = 36
	fieldTurnover = 38
)

type Source struct {
	client *http.Client

	klineURL string
	quoteURL string
}

func New(timeout time.Duration) *Source {
	return &Source{
		client:   http.NewClient(http.WithTimeout(timeout)),
		klineURL: klineURL,
		quoteURL: quoteURL,
	}
}

func (s *Source) Name() string { return "tencent" }

// symbol prefixes the exchange market: Shanghai for 6/5/9 codes,
// Shenzhen otherwise.
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

func (s *Source) get(ctx context.Context, rawURL string, params map[string][]string) ([]byte, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &http.RequestOptions{
		Method:      http.MethodGet,
		URL:         rawURL,
		QueryParams: params,
		Headers:     map[string]string{"Referer": "https://gu.qq.com/"},
	}, &body)
	return body, err
}

// FetchBars pulls forward-adjusted daily bars. The response nests the
// series under data.<symbol>.qfqday, falling back to day for
// instruments without adjustment history (ETFs).
func (s *Source) FetchBars(ctx context.Context, code string, count int) (models.BarSeries, error) {
	sym := symbol(code)
	body, err := s.get(ctx, s.klineURL, map[string][]string{
		"param": {fmt.Sprintf("%s,day,,,%d,qfq", sym, count)},
	})
	if err != nil {
		return nil, fmt.Errorf("tencent kline %s: %w", code, err)
	}

	series := gjson.GetBytes(body, "data."+sym+".qfqday")
	if !series.Exists() {
		series = gjson.GetBytes(body, "data."+sym+".day")
	}
	if !series.Exists() || !series.IsArray() {
		return nil, repository.ErrEmpty
	}

	var bars models.BarSeries
	for _, row := range series.Array() {
		// [date, open, close, high, low, volume]
		cells := row.Array()
		if len(cells) < 6 {
			continue
		}
		day, ok := util.ParseDay(cells[0].String())
		if !ok {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   day,
			Open:   cells[1].Float(),
			Close:  cells[2].Float(),
			High:   cells[3].Float(),
			Low:    cells[4].Float(),
			Volume: cells[5].Float(),
		})
	}
	if len(bars) == 0 {
		return nil, repository.ErrEmpty
	}
	return bars, nil
}

// FetchSingleQuote parses the ~-separated qt.gtimg line for one code.
func (s *Source) FetchSingleQuote(ctx context.Context, code string) (*models.Quote, error) {
	body, err := s.get(ctx, s.quoteURL, map[string][]string{"q": {symbol(code)}})
	if err != nil {
		return nil, fmt.Errorf("tencent quote %s: %w", code, err)
	}
	quote, err := parseQuoteLine(code, string(body))
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func parseQuoteLine(code, line string) (*models.Quote, error) {
	start := strings.Index(line, "\"")
	end := strings.LastIndex(line, "\"")
	if start < 0 || end <= start {
		return nil, repository.ErrEmpty
	}
	fields := strings.Split(line[start+1:end], "~")
	if len(fields) <= fieldTurnover {
		return nil, repository.ErrEmpty
	}
	price := util.ParseFloatDefault(fields[fieldPrice], 0)
	if price == 0 {
		return nil, repository.ErrEmpty
	}
	return &models.Quote{
		Code:         code,
		Name:         fields[fieldName],
		Price:        price,
		PctChange:    util.ParseFloatDefault(fields[fieldPct], 0),
		Open:         util.ParseFloatDefault(fields[fieldOpen], 0),
		High:         util.ParseFloatDefault(fields[fieldHigh], 0),
		Low:          util.ParseFloatDefault(fields[fieldLow], 0),
		Volume:       util.ParseFloatDefault(fields[fieldVolume], 0),
		TurnoverRate: util.ParseFloatDefault(fields[fieldTurnover], 0),
	}, nil
}

// FetchIndexQuotes reads the three headline indices from qt.gtimg.
func (s *Source) FetchIndexQuotes(ctx context.Context) ([]models.IndexQuote, error) {
	body, err := s.get(ctx, s.quoteURL, map[string][]string{
		"q": {"sh000001,sz399001,sz399006"},
	})
	if err != nil {
		return nil, fmt.Errorf("tencent indices: %w", err)
	}
	var out []models.IndexQuote
	for _, line := range strings.Split(string(body), ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		code := indexCode(line)
		q, err := parseQuoteLine(code, line)
		if err != nil {
			continue
		}
		out = append(out, models.IndexQuote{
			Code:      code,
			Name:      q.Name,
			Current:   q.Price,
			ChangePct: q.PctChange,
		})
	}
	if len(out) == 0 {
		return nil, repository.ErrEmpty
	}
	return out, nil
}

// indexCode extracts the numeric code from a "v_sh000001=..." line.
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

// FetchSpotBatch is not offered: gtimg has no full-market endpoint.
func (s *Source) FetchSpotBatch(ctx context.Context) ([]models.Quote, error) {
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
