package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
	"github.com/user/webmonitor/pkg/beacon"
	"github.com/user/webmonitor/pkg/metrics"
)

var (
	ErrValidation      = errors.New("siteId is required")
	ErrNotFound        = errors.New("site not found")
	ErrUnauthenticated = errors.New("authentication required")
)

const (
	DefaultDedupWindow       = 50
	DefaultSuppressionWindow = 10 * time.Minute

	listSampleSize   = 10
	detailSampleSize = 100
	fallbackSiteURL  = "http://localhost:3000"
	maxIDAttempts    = 3
)

// Metric kinds.
const (
	kindPerformance = "performance"
	kindError       = "error"
	kindConsole     = "console"
	kindImage       = "image"
	kindResource    = "resource"
)

// CollectInput is a decoded beacon plus what the transport knows about its sender.
type CollectInput struct {
	Batch   beacon.Batch
	Referer string
	Origin  string
	// ClientKey identifies the sending browser, e.g. address and user agent.
	// Empty disables the server-side suppression marker.
	ClientKey string
	// TrackedIDs are the identifiers listed in the sender's tracking cookie.
	TrackedIDs []string
}

// CollectResult describes what Collect did.
type CollectResult struct {
	// ResolvedID is the normalised identifier suppression markers are keyed by.
	ResolvedID   uuid.UUID
	SiteID       uuid.UUID
	Suppressed   bool
	SiteCreated  bool
	Stored       int
	Deduplicated int
}

// Collector defines the ingestion and dashboard read operations.
type Collector interface {
	Collect(ctx context.Context, in CollectInput) (*CollectResult, error)
	ListSites(ctx context.Context, userID uuid.UUID) ([]*entity.SiteOverview, error)
	SiteDetail(ctx context.Context, userID uuid.UUID, monitoringCode string) (*entity.SiteOverview, error)
}

type CollectorConfig struct {
	DedupWindow       int
	SuppressionWindow time.Duration
	DefaultOwnerEmail string
}

type collectorUseCase struct {
	sites   repository.SiteRepository
	users   repository.UserRepository
	events  repository.EventRepository
	markers repository.MarkerRepository
	metrics *metrics.Metrics
	cfg     CollectorConfig

	now   func() time.Time
	newID func() uuid.UUID
}

// NewCollector creates a new Collector use case. markers may be nil, in
// which case only the tracking cookie suppresses repeats.
func NewCollector(
	sites repository.SiteRepository,
	users repository.UserRepository,
	events repository.EventRepository,
	markers repository.MarkerRepository,
	m *metrics.Metrics,
	cfg CollectorConfig,
) Collector {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = DefaultSuppressionWindow
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &collectorUseCase{
		sites:   sites,
		users:   users,
		events:  events,
		markers: markers,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// resolveID strips the public prefix and accepts the remainder when it is a
// canonical UUID; anything else gets a freshly minted identifier.
func (uc *collectorUseCase) resolveID(code string) uuid.UUID {
	raw := strings.TrimPrefix(code, beacon.SiteIDPrefix)
	if len(raw) == 36 {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uc.newID()
}

// ResolveURL picks the page address for a beacon.
func ResolveURL(in CollectInput) string {
	for _, u := range []string{in.Batch.Data.URL, in.Referer, in.Origin} {
		if u != "" {
			return u
		}
	}
	return fallbackSiteURL
}

func (uc *collectorUseCase) Collect(ctx context.Context, in CollectInput) (*CollectResult, error) {
	code := strings.TrimSpace(in.Batch.SiteID)
	if code == "" {
		uc.metrics.BeaconsReceived.WithLabelValues("invalid").Inc()
		return nil, ErrValidation
	}

	res := &CollectResult{ResolvedID: uc.resolveID(code)}
	if uc.recentlyCollected(ctx, in, res.ResolvedID) {
		uc.metrics.BeaconsReceived.WithLabelValues("suppressed").Inc()
		res.Suppressed = true
		return res, nil
	}

	site, created, err := uc.resolveSite(ctx, code, res.ResolvedID, ResolveURL(in))
	if err != nil {
		uc.metrics.BeaconsReceived.WithLabelValues("failed").Inc()
		return nil, err
	}
	res.SiteID, res.SiteCreated = site.ID, created
	if created {
		uc.metrics.SitesCreated.Inc()
		slog.Info("Site created from beacon", "site_id", site.ID, "monitoring_code", code, "url", site.URL)
	}

	received := uc.now().UTC()
	batchTime := in.Batch.Time()
	if batchTime.IsZero() {
		batchTime = received
	}
	if err := uc.storeEvents(ctx, site.ID, in.Batch.Data, batchTime, res); err != nil {
		uc.metrics.BeaconsReceived.WithLabelValues("failed").Inc()
		return nil, err
	}

	uc.markCollected(ctx, in, res.ResolvedID)
	uc.metrics.BeaconsReceived.WithLabelValues("stored").Inc()
	return res, nil
}

// suppressionKey is the raw marker key; the marker store decides how to
// encode it.
func suppressionKey(clientKey string, id uuid.UUID) string {
	return clientKey + "|" + id.String()
}

func (uc *collectorUseCase) recentlyCollected(ctx context.Context, in CollectInput, id uuid.UUID) bool {
	for _, tracked := range in.TrackedIDs {
		if tracked == id.String() {
			return true
		}
	}
	if uc.markers == nil || in.ClientKey == "" {
		return false
	}
	marked, err := uc.markers.IsMarked(ctx, suppressionKey(in.ClientKey, id))
	if err != nil {
		// Not critical: the batch is accepted and dedup still applies.
		slog.Warn("Failed to check suppression marker", "error", err)
		return false
	}
	return marked
}

func (uc *collectorUseCase) markCollected(ctx context.Context, in CollectInput, id uuid.UUID) {
	if uc.markers == nil || in.ClientKey == "" {
		return
	}
	if err := uc.markers.Mark(ctx, suppressionKey(in.ClientKey, id), uc.cfg.SuppressionWindow); err != nil {
		slog.Warn("Failed to set suppression marker", "error", err)
	}
}

// resolveSite finds or creates the site for code. An existing site keeps its
// id, owner and slug; a new one is stored under id unless that id is already
// taken by another code, in which case a fresh one is minted.
func (uc *collectorUseCase) resolveSite(ctx context.Context, code string, id uuid.UUID, pageURL string) (*entity.Site, bool, error) {
	site := &entity.Site{
		ID:             id,
		Slug:           slugFor(id),
		URL:            pageURL,
		MonitoringCode: code,
		Status:         entity.StatusWarning,
	}

	existing, err := uc.sites.FindByMonitoringCode(ctx, code)
	switch {
	case err == nil:
		site.ID, site.UserID, site.Slug = existing.ID, existing.UserID, existing.Slug
	case errors.Is(err, repository.ErrNotFound):
		owner, err := uc.users.DefaultOwner(ctx, uc.cfg.DefaultOwnerEmail)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve default owner: %w", err)
		}
		site.UserID = owner.ID
	default:
		return nil, false, fmt.Errorf("failed to look up site %q: %w", code, err)
	}

	for attempt := 1; ; attempt++ {
		created, err := uc.sites.Upsert(ctx, site)
		if err == nil {
			return site, created, nil
		}
		if !errors.Is(err, repository.ErrIDConflict) || attempt == maxIDAttempts {
			return nil, false, fmt.Errorf("failed to upsert site %q: %w", code, err)
		}
		site.ID = uc.newID()
		site.Slug = slugFor(site.ID)
		slog.Warn("Site id already in use, minted a new one", "monitoring_code", code, "site_id", site.ID)
	}
}

func slugFor(id uuid.UUID) string {
	return "site-" + id.String()
}

// dedup drops incoming rows whose key is among recent or already seen
// earlier in incoming.
func dedup[T any](recent, incoming []T, key func(T) string) (fresh []T, skipped int) {
	seen := make(map[string]struct{}, len(recent)+len(incoming))
	for _, r := range recent {
		seen[key(r)] = struct{}{}
	}
	for _, in := range incoming {
		k := key(in)
		if _, dup := seen[k]; dup {
			skipped++
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, in)
	}
	return fresh, skipped
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// storeStep persists one collection kind: read the recent window, drop
// duplicates, insert the rest.
func storeStep[T any](
	ctx context.Context,
	uc *collectorUseCase,
	res *CollectResult,
	kind string,
	siteID uuid.UUID,
	incoming []T,
	key func(T) string,
	recent func(context.Context, uuid.UUID, int) ([]T, error),
	insert func(context.Context, []T) error,
) error {
	if len(incoming) == 0 {
		return nil
	}
	window, err := recent(ctx, siteID, uc.cfg.DedupWindow)
	if err != nil {
		return fmt.Errorf("failed to read recent %s rows: %w", kind, err)
	}
	fresh, skipped := dedup(window, incoming, key)
	if len(fresh) > 0 {
		if err := insert(ctx, fresh); err != nil {
			return fmt.Errorf("failed to store %s rows: %w", kind, err)
		}
	}
	uc.metrics.EventsStored.WithLabelValues(kind).Add(float64(len(fresh)))
	uc.metrics.EventsDeduplicated.WithLabelValues(kind).Add(float64(skipped))
	res.Stored += len(fresh)
	res.Deduplicated += skipped
	return nil
}

func (uc *collectorUseCase) storeEvents(ctx context.Context, siteID uuid.UUID, data beacon.Data, batchTime time.Time, res *CollectResult) error {
	if err := uc.storePerformance(ctx, siteID, data.LoadTime, batchTime, res); err != nil {
		return err
	}

	consoleRows := make([]entity.ConsoleEntry, 0, len(data.ConsoleEntries))
	for _, c := range data.ConsoleEntries {
		consoleRows = append(consoleRows, entity.ConsoleEntry{
			SiteID:    siteID,
			Type:      consoleType(c.Type),
			Message:   c.Message,
			Timestamp: c.Timestamp.Or(batchTime),
		})
	}
	if err := storeStep(ctx, uc, res, kindConsole, siteID, consoleRows,
		func(c entity.ConsoleEntry) string { return joinKey(c.Message, c.Type) },
		uc.events.RecentConsoleEntries, uc.events.InsertConsoleEntries,
	); err != nil {
		return err
	}

	errorRows := make([]entity.JSError, 0, len(data.Errors))
	for _, e := range data.Errors {
		typ := e.Type
		if typ == "" {
			typ = "Error"
		}
		errorRows = append(errorRows, entity.JSError{
			SiteID:     siteID,
			Type:       typ,
			Message:    e.Message,
			Filename:   e.Filename,
			LineNumber: e.Lineno,
			Timestamp:  e.Timestamp.Or(batchTime),
		})
	}
	if err := storeStep(ctx, uc, res, kindError, siteID, errorRows,
		func(e entity.JSError) string { return joinKey(e.Message, e.Filename) },
		uc.events.RecentErrors, uc.events.InsertErrors,
	); err != nil {
		return err
	}

	imageRows := make([]entity.ImageIssue, 0, len(data.ImageIssues))
	for _, img := range data.ImageIssues {
		imageRows = append(imageRows, entity.ImageIssue{
			SiteID:       siteID,
			URL:          img.URL,
			OriginalSize: entity.Size(img.OriginalSize),
			DisplaySize:  entity.Size(img.DisplaySize),
		})
	}
	if err := storeStep(ctx, uc, res, kindImage, siteID, imageRows,
		func(i entity.ImageIssue) string { return i.URL },
		uc.events.RecentImageIssues, uc.events.InsertImageIssues,
	); err != nil {
		return err
	}

	resourceRows := make([]entity.Resource, 0, len(data.Resources))
	for _, r := range data.Resources {
		resourceRows = append(resourceRows, entity.Resource{
			SiteID:    siteID,
			Name:      r.Name,
			Type:      r.Type,
			Duration:  r.Duration,
			Size:      r.Size,
			Timestamp: batchTime,
		})
	}
	return storeStep(ctx, uc, res, kindResource, siteID, resourceRows,
		func(r entity.Resource) string { return r.Name },
		uc.events.RecentResources, uc.events.InsertResources,
	)
}

// storePerformance records loadTime unless it was never measured or equals
// the latest stored sample.
func (uc *collectorUseCase) storePerformance(ctx context.Context, siteID uuid.UUID, loadTime float64, at time.Time, res *CollectResult) error {
	if loadTime <= 0 {
		return nil
	}
	latest, err := uc.events.LatestPerformance(ctx, siteID)
	switch {
	case err == nil && latest.LoadTime == loadTime:
		uc.metrics.EventsDeduplicated.WithLabelValues(kindPerformance).Inc()
		res.Deduplicated++
		return nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to read latest performance sample: %w", err)
	}
	sample := entity.PerformanceSample{SiteID: siteID, Time: at, LoadTime: loadTime}
	if err := uc.events.InsertPerformance(ctx, sample); err != nil {
		return fmt.Errorf("failed to store performance sample: %w", err)
	}
	uc.metrics.EventsStored.WithLabelValues(kindPerformance).Inc()
	res.Stored++
	return nil
}

// consoleType folds unknown levels into "log".
func consoleType(t string) string {
	switch t {
	case "log", "info", "warn", "error":
		return t
	default:
		return "log"
	}
}

func (uc *collectorUseCase) ListSites(ctx context.Context, userID uuid.UUID) ([]*entity.SiteOverview, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	sites, err := uc.sites.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	out := make([]*entity.SiteOverview, 0, len(sites))
	for _, s := range sites {
		ov, err := uc.overview(ctx, s, listSampleSize, false)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

func (uc *collectorUseCase) SiteDetail(ctx context.Context, userID uuid.UUID, monitoringCode string) (*entity.SiteOverview, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	site, err := uc.sites.FindByMonitoringCode(ctx, monitoringCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up site %q: %w", monitoringCode, err)
	}
	// Foreign sites are indistinguishable from missing ones.
	if site.UserID != userID {
		return nil, ErrNotFound
	}
	return uc.overview(ctx, site, detailSampleSize, true)
}

func (uc *collectorUseCase) overview(ctx context.Context, site *entity.Site, n int, series bool) (*entity.SiteOverview, error) {
	ov := &entity.SiteOverview{Site: site}
	var err error
	if series {
		if ov.PerformanceData, err = uc.events.RecentPerformance(ctx, site.ID, n); err != nil {
			return nil, fmt.Errorf("failed to read performance samples: %w", err)
		}
		if len(ov.PerformanceData) > 0 {
			ov.LoadTime = ov.PerformanceData[0].LoadTime
		}
	} else {
		latest, err := uc.events.LatestPerformance(ctx, site.ID)
		switch {
		case err == nil:
			ov.LoadTime = latest.LoadTime
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("failed to read latest performance sample: %w", err)
		}
	}
	if ov.Errors, err = uc.events.RecentErrors(ctx, site.ID, n); err != nil {
		return nil, fmt.Errorf("failed to read errors: %w", err)
	}
	if ov.ConsoleEntries, err = uc.events.RecentConsoleEntries(ctx, site.ID, n); err != nil {
		return nil, fmt.Errorf("failed to read console entries: %w", err)
	}
	if ov.ImageIssues, err = uc.events.RecentImageIssues(ctx, site.ID, n); err != nil {
		return nil, fmt.Errorf("failed to read image issues: %w", err)
	}
	return ov, nil
}
