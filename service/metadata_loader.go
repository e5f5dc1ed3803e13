package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

var (
	// ErrNotMinted is returned for ids the gateway does not know (HTTP 404)
	ErrNotMinted = errors.New("token not minted yet")
	// ErrGatewaysUnavailable is the single systemic error recorded when a whole batch fails
	ErrGatewaysUnavailable = errors.New("failed to load some NFTs. Please refresh to try again")
	// ErrLoadInProgress is returned by Backfill while LoadAll is still running
	ErrLoadInProgress = errors.New("collection load in progress")

	errRateLimited = errors.New("gateway rate limited")
	errMalformed   = errors.New("malformed metadata")
)

// LoaderOptions configures the MetadataLoader
type LoaderOptions struct {
	Supply         int
	BatchSize      int
	BatchDelay     time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	MetadataHash   string
	ImageHash      string
	OneOfOneIDs    []int
}

// MetadataLoader fetches per-token metadata from IPFS gateways in bounded batches
type MetadataLoader struct {
	client   *http.Client
	gateways *GatewayRotator
	opts     LoaderOptions
	specials map[int]bool

	mu     sync.Mutex
	status models.LoadStatus
}

// NewMetadataLoader creates a loader. client may be nil, in which case a default client is used.
func NewMetadataLoader(client *http.Client, gateways *GatewayRotator, opts LoaderOptions) *MetadataLoader {
	if client == nil {
		client = &http.Client{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}

	specials := make(map[int]bool, len(opts.OneOfOneIDs))
	for _, id := range opts.OneOfOneIDs {
		specials[id] = true
	}

	return &MetadataLoader{
		client:   client,
		gateways: gateways,
		opts:     opts,
		specials: specials,
		status:   models.LoadStatus{Supply: opts.Supply},
	}
}

// Ensure MetadataLoader implements MetadataLoaderInterface
var _ MetadataLoaderInterface = (*MetadataLoader)(nil)

// Status returns a snapshot of the loading progress
func (l *MetadataLoader) Status() models.LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// LoadAll fetches every id in [0, supply) in batches of BatchSize, publishing each batch's resolved
// items once the batch completes. Individual failures are omitted silently. When a whole batch fails
// for transient reasons ErrGatewaysUnavailable is recorded once and loading continues.
// The returned error is ctx.Err() on cancellation, the systemic error if one was recorded, or nil.
func (l *MetadataLoader) LoadAll(ctx context.Context, publish func([]models.NFT)) error {
	started := time.Now()
	l.mu.Lock()
	l.status = models.LoadStatus{Loading: true, Supply: l.opts.Supply, StartedAt: &started}
	l.mu.Unlock()

	logger.Info("🔄 Loading metadata for %d tokens (batch=%d, retries=%d, gateways=%d)",
		l.opts.Supply, l.opts.BatchSize, l.opts.MaxRetries, l.gateways.Len())

	var systemic error
	for start := 0; start < l.opts.Supply; start += l.opts.BatchSize {
		end := min(start+l.opts.BatchSize, l.opts.Supply)

		items, transientFailures, err := l.loadBatch(ctx, start, end)
		if err != nil {
			l.finish(err)
			return err
		}

		if len(items) > 0 {
			publish(items)
			itemsLoaded.Add(float64(len(items)))
		}

		l.mu.Lock()
		l.status.Loaded += len(items)
		l.status.Failed += transientFailures
		if transientFailures == end-start && systemic == nil {
			systemic = ErrGatewaysUnavailable
			l.status.Error = systemic.Error()
			logger.Error("❌ Batch %d-%d failed on every gateway", start, end-1)
		}
		l.mu.Unlock()

		logger.Debug("📦 Batch %d-%d: %d loaded, %d unavailable", start, end-1, len(items), transientFailures)

		if end < l.opts.Supply && l.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				l.finish(ctx.Err())
				return ctx.Err()
			case <-time.After(l.opts.BatchDelay):
			}
		}
	}

	l.finish(systemic)
	status := l.Status()
	logger.Info("🎉 Metadata load finished: %d/%d loaded, %d unavailable in %s",
		status.Loaded, status.Supply, status.Failed, time.Since(started).Round(time.Millisecond))
	return systemic
}

func (l *MetadataLoader) finish(err error) {
	now := time.Now()
	l.mu.Lock()
	l.status.Loading = false
	l.status.FinishedAt = &now
	if err != nil && l.status.Error == "" {
		l.status.Error = err.Error()
	}
	l.mu.Unlock()
}

// loadBatch fetches ids [start, end) concurrently. It returns the resolved items in id order and the
// number of ids that failed for transient reasons.
func (l *MetadataLoader) loadBatch(ctx context.Context, start, end int) ([]models.NFT, int, error) {
	batchStart := time.Now()
	defer func() { batchDuration.Observe(time.Since(batchStart).Seconds()) }()

	results := make([]*models.NFT, end-start)
	transient := make([]bool, end-start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.BatchSize)
	for id := start; id < end; id++ {
		g.Go(func() error {
			item, err := l.FetchOne(gctx, id)
			switch {
			case err == nil:
				results[id-start] = item
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, ErrNotMinted):
				itemsOmitted.WithLabelValues("not_minted").Inc()
			case errors.Is(err, errMalformed):
				itemsOmitted.WithLabelValues("malformed").Inc()
			default:
				transient[id-start] = true
				itemsOmitted.WithLabelValues("unavailable").Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	items := make([]models.NFT, 0, len(results))
	failures := 0
	for i, item := range results {
		if item != nil {
			items = append(items, *item)
		}
		if transient[i] {
			failures++
		}
	}
	return items, failures, nil
}

// Backfill fetches one id the last load omitted and hands it to store. It refuses to run while LoadAll
// is in progress, so a backfilled item never collides with a batch that is about to be published.
// Loaded is incremented only when store accepts the item.
func (l *MetadataLoader) Backfill(ctx context.Context, id int, store func(models.NFT) error) (*models.NFT, error) {
	if l.Status().Loading {
		return nil, ErrLoadInProgress
	}

	item, err := l.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store(*item); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.status.Loaded++
	l.mu.Unlock()
	itemsLoaded.Inc()
	return item, nil
}

// FetchOne retrieves metadata for a single id, retrying up to MaxRetries times. Rate limited and
// transient failures rotate to the next gateway before retrying; a 404 is not retried.
func (l *MetadataLoader) FetchOne(ctx context.Context, id int) (*models.NFT, error) {
	if id < 0 || id >= l.opts.Supply {
		return nil, fmt.Errorf("%w: id %d", ErrNotMinted, id)
	}

	var lastErr error
	for attempt := 1; attempt <= l.opts.MaxRetries; attempt++ {
		idx, gateway := l.gateways.Current()

		metadata, err := l.fetchMetadata(ctx, gateway, id)
		if err == nil {
			return l.toNFT(id, gateway, metadata), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNotMinted) || errors.Is(err, errMalformed) {
			return nil, err
		}

		lastErr = err
		next := l.gateways.RotateFrom(idx)
		logger.Debug("⚠️  Token %d attempt %d/%d on %s failed: %v (next gateway %s)",
			id, attempt, l.opts.MaxRetries, gateway, err, next)

		if attempt < l.opts.MaxRetries && !errors.Is(err, errRateLimited) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.opts.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("token %d unavailable after %d attempts: %w", id, l.opts.MaxRetries, lastErr)
}

func (l *MetadataLoader) fetchMetadata(ctx context.Context, gateway string, id int) (*models.NFTMetadata, error) {
	reqCtx := ctx
	if l.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, l.opts.RequestTimeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/%s/%d.json", gateway, l.opts.MetadataHash, id)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		fetchAttempts.WithLabelValues(gateway, outcome).Inc()
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		fetchAttempts.WithLabelValues(gateway, "not_found").Inc()
		return nil, fmt.Errorf("%w: id %d", ErrNotMinted, id)
	case resp.StatusCode == http.StatusTooManyRequests:
		fetchAttempts.WithLabelValues(gateway, "rate_limited").Inc()
		return nil, errRateLimited
	case resp.StatusCode != http.StatusOK:
		fetchAttempts.WithLabelValues(gateway, "error").Inc()
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fetchAttempts.WithLabelValues(gateway, "error").Inc()
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata models.NFTMetadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		fetchAttempts.WithLabelValues(gateway, "error").Inc()
		return nil, fmt.Errorf("%w: token %d: %v", errMalformed, id, err)
	}
	fetchAttempts.WithLabelValues(gateway, "ok").Inc()
	return &metadata, nil
}

func (l *MetadataLoader) toNFT(id int, gateway string, metadata *models.NFTMetadata) *models.NFT {
	return &models.NFT{
		NFTMetadata: *metadata,
		ID:          id,
		ImageURL:    fmt.Sprintf("%s/%s/%d.png", gateway, l.opts.ImageHash, id),
		IsOneOfOne:  l.specials[id],
	}
}
