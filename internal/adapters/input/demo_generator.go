package input

import (
	"context"
	"math/rand"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// DemoGenerator produces synthetic access log traffic for replay: a large
// population of human visitors requesting a page every few seconds to
// minutes, mixed with a handful of scrapers requesting several pages per
// second.
//
// Timestamps are virtual. They start at Start and advance by a random gap
// per entry, so a replay of a day of traffic finishes in milliseconds and
// the outcome depends only on Seed.
type DemoGenerator struct {
	config    DemoConfig
	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	generated atomic.Uint64

	humanIPs   []netip.Addr
	scraperIPs []netip.Addr
}

type DemoConfig struct {
	Count          int       // Entries to generate (default: 10000)
	Humans         int       // Distinct human clients (default: 2000)
	Scrapers       int       // Distinct scraper clients (default: 10)
	ScraperPercent int       // Share of entries sent by scrapers (default: 20)
	BufferSize     int       // Entry channel capacity (default: 1000)
	Seed           int64     // Random seed (default: 1)
	Start          time.Time // First virtual timestamp (default: 2024-01-01 UTC)
}

func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		Count:          10000,
		Humans:         2000,
		Scrapers:       10,
		ScraperPercent: 20,
		BufferSize:     1000,
		Seed:           1,
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var demoPaths = []string{
	"/", "/index.html", "/about", "/contact", "/products", "/products/1",
	"/products/2", "/blog", "/blog/post-1", "/search?q=shoes", "/cart",
	"/css/main.css", "/js/app.js", "/images/logo.png",
}

var humanUAs = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
}

var scraperUAs = []string{
	"python-requests/2.31.0",
	"Scrapy/2.11.0 (+https://scrapy.org)",
	"curl/8.4.0",
	"Go-http-client/1.1",
}

func NewDemoGenerator(config DemoConfig) *DemoGenerator {
	defaults := DefaultDemoConfig()
	if config.Count <= 0 {
		config.Count = defaults.Count
	}
	if config.Humans <= 0 {
		config.Humans = defaults.Humans
	}
	if config.Scrapers < 0 {
		config.Scrapers = 0
	}
	if config.ScraperPercent < 0 || config.ScraperPercent > 100 {
		config.ScraperPercent = defaults.ScraperPercent
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.Seed == 0 {
		config.Seed = defaults.Seed
	}
	if config.Start.IsZero() {
		config.Start = defaults.Start
	}

	return &DemoGenerator{
		config:     config,
		stopChan:   make(chan struct{}),
		humanIPs:   generateIPPool(config.Humans, netip.MustParseAddr("10.0.0.1")),
		scraperIPs: generateIPPool(config.Scrapers, netip.MustParseAddr("203.0.113.1")),
	}
}

// Start emits Count entries in timestamp order and closes both channels.
func (g *DemoGenerator) Start(ctx context.Context) (<-chan *domain.LogEntry, <-chan error) {
	entryChan := make(chan *domain.LogEntry, g.config.BufferSize)
	errChan := make(chan error)

	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		close(entryChan)
		close(errChan)
		return entryChan, errChan
	}
	g.running = true
	g.stopChan = make(chan struct{})
	stopChan := g.stopChan
	g.mu.Unlock()

	go func() {
		defer close(entryChan)
		defer close(errChan)
		defer func() {
			g.mu.Lock()
			g.running = false
			g.mu.Unlock()
		}()

		rng := rand.New(rand.NewSource(g.config.Seed))
		now := g.config.Start

		log.Info().
			Int("count", g.config.Count).
			Int("humans", len(g.humanIPs)).
			Int("scrapers", len(g.scraperIPs)).
			Msg("Generating demo traffic")

		for i := 0; i < g.config.Count; i++ {
			// ~40 entries/s overall. With the defaults each scraper sends
			// about one request per second and each human one a minute.
			now = now.Add(time.Duration(rng.Intn(50)) * time.Millisecond)
			entry := g.generateEntry(rng, now)

			select {
			case entryChan <- entry:
				g.generated.Add(1)
			case <-ctx.Done():
				domain.ReleaseLogEntry(entry)
				return
			case <-stopChan:
				domain.ReleaseLogEntry(entry)
				return
			}
		}
	}()

	return entryChan, errChan
}

func (g *DemoGenerator) generateEntry(rng *rand.Rand, at time.Time) *domain.LogEntry {
	entry := domain.AcquireLogEntry()
	entry.Timestamp = at
	entry.Method = "GET"
	entry.Path = demoPaths[rng.Intn(len(demoPaths))]
	entry.StatusCode = 200
	entry.BytesSent = 512 + rng.Intn(16*1024)

	if len(g.scraperIPs) > 0 && rng.Intn(100) < g.config.ScraperPercent {
		entry.IP = g.scraperIPs[rng.Intn(len(g.scraperIPs))]
		entry.UserAgent = scraperUAs[rng.Intn(len(scraperUAs))]
	} else {
		entry.IP = g.humanIPs[rng.Intn(len(g.humanIPs))]
		entry.UserAgent = humanUAs[rng.Intn(len(humanUAs))]
	}
	return entry
}

func (g *DemoGenerator) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return nil
	}
	close(g.stopChan)
	g.running = false
	return nil
}

func (g *DemoGenerator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Generated returns the number of entries emitted so far.
func (g *DemoGenerator) Generated() uint64 {
	return g.generated.Load()
}

// IsScraper reports whether addr belongs to the generated scraper pool.
func (g *DemoGenerator) IsScraper(addr netip.Addr) bool {
	for _, ip := range g.scraperIPs {
		if ip == addr {
			return true
		}
	}
	return false
}

// generateIPPool returns count consecutive addresses starting at first.
func generateIPPool(count int, first netip.Addr) []netip.Addr {
	pool := make([]netip.Addr, 0, count)
	addr := first
	for i := 0; i < count; i++ {
		pool = append(pool, addr)
		addr = addr.Next()
	}
	return pool
}
