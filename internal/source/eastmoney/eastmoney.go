// Package eastmoney adapts the EastMoney push2 quote APIs to the
// sentinel's source contract. It is the primary provider: the only one
// serving the full-market spot batch and macro headline feeds.
package eastmoney

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
	listURL      = "https://82.push2.eastmoney.com/api/qt/clist/get"
	klineURL     = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	ulistURL     = "https://push2.eastmoney.com/api/qt/ulist.np/get"
	stockNewsURL = "https://np-listapi.eastmoney.com/comm/wap/getListInfo"
	fastNewsURL  = "https://np-weblist.eastmoney.com/comm/web/getFastNewsList"

	// f2 price, f3 pct, f5 volume(lots), f8 turnover, f12 code,
	// f14 name, f15 high, f16 low, f17 open
	quoteFields = "f2,f3,f5,f8,f12,f14,f15,f16,f17"
	indexFields = "f12,f14,f2,f3"

	// 上证指数, 深证成指, 创业板指
	indexSecIDs = "1.000001,0.399001,0.399006"

	// All A-share boards: SZ main, ChiNext, SH main, STAR.
	spotMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"

	pageSize = 500
	maxPages = 20
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Source struct {
	client *http.Client

	listURL      string
	klineURL     string
	ulistURL     string
	stockNewsURL string
	fastNewsURL  string
}

func New(timeout time.Duration) *Source {
	return &Source{
		client:       http.NewClient(http.WithTimeout(timeout)),
		listURL:      listURL,
		klineURL:     klineURL,
		ulistURL:     ulistURL,
		stockNewsURL: stockNewsURL,
		fastNewsURL:  fastNewsURL,
	}
}

func (s *Source) Name() string { return "eastmoney" }

// secID renders the push2 security id: Shanghai listings (6/5/9
// prefixes) live in market 1, Shenzhen in market 0.
func secID(code string) string {
	if code == "" {
		return "0.000000"
	}
	switch code[0] {
	case '6', '5', '9':
		return "1." + code
	default:
		return "0." + code
	}
}

func (s *Source) get(ctx context.Context, rawURL string, params map[string][]string) ([]byte, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &http.RequestOptions{
		Method:      http.MethodGet,
		URL:         rawURL,
		QueryParams: params,
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Referer":    "https://quote.eastmoney.com/",
		},
	}, &body)
	return body, err
}

func quoteFromDiff(v gjson.Result) models.Quote {
	return models.Quote{
		Code:         v.Get("f12").String(),
		Name:         v.Get("f14").String(),
		Price:        v.Get("f2").Float(),
		PctChange:    v.Get("f3").Float(),
		Open:         v.Get("f17").Float(),
		High:         v.Get("f15").Float(),
		Low:          v.Get("f16").Float(),
		Volume:       v.Get("f5").Float(),
		TurnoverRate: v.Get("f8").Float(),
	}
}

// FetchSpotBatch pages through the clist endpoint until the advertised
// total is reached.
func (s *Source) FetchSpotBatch(ctx context.Context) ([]models.Quote, error) {
	var all []models.Quote
	for page := 1; page <= maxPages; page++ {
		body, err := s.get(ctx, s.listURL, map[string][]string{
			"pn":     {fmt.Sprint(page)},
			"pz":     {fmt.Sprint(pageSize)},
			"fs":     {spotMarkets},
			"fields": {quoteFields},
		})
		if err != nil {
			return nil, fmt.Errorf("eastmoney spot page %d: %w", page, err)
		}

		diff := gjson.GetBytes(body, "data.diff")
		if !diff.Exists() {
			break
		}
		count := 0
		diff.ForEach(func(_, v gjson.Result) bool {
			if q := quoteFromDiff(v); q.Code != "" {
				all = append(all, q)
				count++
			}
			return true
		})
		total := int(gjson.GetBytes(body, "data.total").Int())
		if count == 0 || count < pageSize || len(all) >= total {
			break
		}
	}
	if len(all) == 0 {
		return nil, repository.ErrEmpty
	}
	return all, nil
}

// FetchBars returns forward-adjusted daily bars, oldest first.
func (s *Source) FetchBars(ctx context.Context, code string, count int) (models.BarSeries, error) {
	if count > 1000 {
		count = 1000
	}
	body, err := s.get(ctx, s.klineURL, map[string][]string{
		"secid":   {secID(code)},
		"fields1": {"f1,f2,f3,f4,f5,f6"},
		"fields2": {"f51,f52,f53,f54,f55,f56"},
		"klt":     {"101"},
		"fqt":     {"1"},
		"lmt":     {fmt.Sprint(count)},
	})
	if err != nil {
		return nil, fmt.Errorf("eastmoney kline %s: %w", code, err)
	}

	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, repository.ErrEmpty
	}
	var bars models.BarSeries
	for _, v := range klines.Array() {
		// "date,open,close,high,low,volume"
		parts := strings.Split(strings.TrimSpace(v.String()), ",")
		if len(parts) < 6 {
			continue
		}
		day, ok := util.ParseDay(parts[0])
		if !ok {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   day,
			Open:   util.ParseFloatDefault(parts[1], 0),
			Close:  util.ParseFloatDefault(parts[2], 0),
			High:   util.ParseFloatDefault(parts[3], 0),
			Low:    util.ParseFloatDefault(parts[4], 0),
			Volume: util.ParseFloatDefault(parts[5], 0),
		})
	}
	if len(bars) == 0 {
		return nil, repository.ErrEmpty
	}
	return bars, nil
}

// FetchSingleQuote resolves one instrument through the ulist endpoint.
func (s *Source) FetchSingleQuote(ctx context.Context, code string) (*models.Quote, error) {
	body, err := s.get(ctx, s.ulistURL, map[string][]string{
		"secids": {secID(code)},
		"fields": {quoteFields},
	})
	if err != nil {
		return nil, fmt.Errorf("eastmoney quote %s: %w", code, err)
	}
	diff := gjson.GetBytes(body, "data.diff")
	if !diff.Exists() {
		return nil, repository.ErrEmpty
	}
	var quote *models.Quote
	diff.ForEach(func(_, v gjson.Result) bool {
		if q := quoteFromDiff(v); q.Code != "" {
			quote = &q
			return false
		}
		return true
	})
	if quote == nil {
		return nil, repository.ErrEmpty
	}
	return quote, nil
}

// FetchIndexQuotes returns the three headline indices. The ulist f3 for
// indices is percent x100 (-0.25% arrives as -25), detected by
// magnitude and scaled down.
func (s *Source) FetchIndexQuotes(ctx context.Context) ([]models.IndexQuote, error) {
	body, err := s.get(ctx, s.ulistURL, map[string][]string{
		"secids": {indexSecIDs},
		"fields": {indexFields},
	})
	if err != nil {
		return nil, fmt.Errorf("eastmoney indices: %w", err)
	}
	diff := gjson.GetBytes(body, "data.diff")
	if !diff.Exists() {
		return nil, repository.ErrEmpty
	}
	var out []models.IndexQuote
	diff.ForEach(func(_, v gjson.Result) bool {
		code := strings.TrimSpace(v.Get("f12").String())
		name := strings.TrimSpace(v.Get("f14").String())
		if code == "" && name == "" {
			return true
		}
		pct := v.Get("f3").Float()
		if pct > 20 || pct < -20 {
			pct /= 100
		}
		out = append(out, models.IndexQuote{
			Code:      code,
			Name:      name,
			Current:   v.Get("f2").Float(),
			ChangePct: pct,
		})
		return true
	})
	if len(out) == 0 {
		return nil, repository.ErrEmpty
	}
	return out, nil
}

// FetchNews returns the latest headline titles for one instrument.
func (s *Source) FetchNews(ctx context.Context, code string, count int) ([]string, error) {
	market := "0"
	if strings.HasPrefix(secID(code), "1.") {
		market = "1"
	}
	body, err := s.get(ctx, s.stockNewsURL, map[string][]string{
		"client":       {"wap"},
		"type":         {"1"},
		"mTypeAndCode": {market + "." + code},
		"pageSize":     {fmt.Sprint(count)},
	})
	if err != nil {
		return nil, fmt.Errorf("eastmoney news %s: %w", code, err)
	}
	list := gjson.GetBytes(body, "data.list")
	if !list.Exists() {
		return nil, repository.ErrEmpty
	}
	var titles []string
	list.ForEach(func(_, v gjson.Result) bool {
		if t := strings.TrimSpace(v.Get("Art_Title").String()); t != "" {
			titles = append(titles, t)
		}
		return len(titles) < count
	})
	if len(titles) == 0 {
		return nil, repository.ErrEmpty
	}
	return titles, nil
}

// FetchMacroNews pulls the 7x24 telegraph feed plus the AI/tech column.
func (s *Source) FetchMacroNews(ctx context.Context, count int) (*models.MacroNews, error) {
	telegraph, err := s.fastNews(ctx, "102", count)
	if err != nil {
		return nil, err
	}
	// The tech column is best effort on top of the telegraph feed.
	aiTech, _ := s.fastNews(ctx, "370", count)
	if len(telegraph) == 0 && len(aiTech) == 0 {
		return nil, repository.ErrEmpty
	}
	return &models.MacroNews{Telegraph: telegraph, AITech: aiTech}, nil
}

func (s *Source) fastNews(ctx context.Context, column string, count int) ([]string, error) {
	body, err := s.get(ctx, s.fastNewsURL, map[string][]string{
		"client":     {"web"},
		"biz":        {"web_724"},
		"fastColumn": {column},
		"pageSize":   {fmt.Sprint(count)},
	})
	if err != nil {
		return nil, fmt.Errorf("eastmoney fast news: %w", err)
	}
	list := gjson.GetBytes(body, "data.fastNewsList")
	if !list.Exists() {
		return nil, nil
	}
	var titles []string
	list.ForEach(func(_, v gjson.Result) bool {
		if t := strings.TrimSpace(v.Get("title").String()); t != "" {
			titles = append(titles, t)
		}
		return len(titles) < count
	})
	return titles, nil
}
