package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csafsync/csafsync/internal/core"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 100
)

// Getter is the dispatcher surface the fetcher drives.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) ([]byte, error)
	GetJSON(ctx context.Context, path string, params url.Values, v any) ([]byte, error)
}

// ManifestWriter records successfully persisted advisories.
type ManifestWriter interface {
	RecordAdvisory(ctx context.Context, entry core.ManifestEntry) error
}

// Fetcher walks the advisory listing and persists each advisory document as
// an individual file. A failure on one advisory is recorded in the summary
// and the batch continues; only authentication failures abort the run.
type Fetcher struct {
	Client   Getter
	Manifest ManifestWriter
	Logger   *logging.Logger
	Clock    func() time.Time
	PageSize int
}

// Run executes one fetch pass for the given query, writing documents to
// outputDir. The returned summary counts successes and failures; partial
// completion is normal and not an error.
func (f *Fetcher) Run(ctx context.Context, query core.Query, outputDir string) (*core.RunSummary, error) {
	if f == nil || f.Client == nil {
		return nil, errors.New("fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	summary := &core.RunSummary{
		RunID:     uuid.New().String(),
		Mode:      query.Mode,
		OutputDir: outputDir,
		StartedAt: f.now(),
	}

	path, params, err := f.listingQuery(query, summary)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	pages := &pager{
		client:   f.Client,
		path:     path,
		base:     params,
		pageSize: f.pageSize(),
	}

	for {
		records, err := pages.Next(ctx)
		if err != nil {
			// Without a listing there is nothing to continue with.
			return summary, err
		}
		if records == nil {
			break
		}

		for _, record := range records {
			summary.Listed++
			if err := f.fetchOne(ctx, record, outputDir, summary); err != nil {
				var authErr *core.AuthError
				if errors.As(err, &authErr) {
					summary.CompletedAt = f.now()
					return summary, err
				}
				summary.Failed++
				summary.Failures = append(summary.Failures, core.Failure{
					AdvisoryID: record.AdvisoryID,
					Reason:     err.Error(),
				})
				f.warn("Advisory skipped", zap.String("advisory_id", record.AdvisoryID), zap.Error(err))
				continue
			}
			summary.Fetched++
		}
	}

	summary.CompletedAt = f.now()
	return summary, nil
}

// listingQuery resolves the listing path and parameters for the query mode.
// In dates mode the range spans [today-N, today] inclusive, regardless of
// time of day.
func (f *Fetcher) listingQuery(query core.Query, summary *core.RunSummary) (string, url.Values, error) {
	params := url.Values{}

	switch query.Mode {
	case core.ModeAll, "":
		return "", params, nil
	case core.ModeDates:
		days := query.Days
		if days < 0 {
			return "", nil, fmt.Errorf("days must not be negative, got %d", days)
		}
		today := f.now()
		start := today.AddDate(0, 0, -days)
		summary.StartDate = start.Format(dateLayout)
		summary.EndDate = today.Format(dateLayout)
		params.Set("startDate", summary.StartDate)
		params.Set("endDate", summary.EndDate)
		return "lastpublished", params, nil
	default:
		return "", nil, fmt.Errorf("invalid mode %q, use %q or %q", query.Mode, core.ModeAll, core.ModeDates)
	}
}

// fetchOne downloads a single advisory document and writes it verbatim to
// <outputDir>/<advisory_id>.json.
func (f *Fetcher) fetchOne(ctx context.Context, record core.AdvisoryRecord, outputDir string, summary *core.RunSummary) error {
	id := strings.TrimSpace(record.AdvisoryID)
	if id == "" {
		return errors.New("listing record is missing an advisory id")
	}
	if id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("advisory id %q is not a safe file name", id)
	}

	body, err := f.Client.Get(ctx, id, nil)
	if err != nil {
		return err
	}

	target := filepath.Join(outputDir, id+".json")
	if err := os.WriteFile(target, body, 0644); err != nil {
		return fmt.Errorf("write advisory: %w", err)
	}

	if f.Manifest != nil {
		sum := sha256.Sum256(body)
		entry := core.ManifestEntry{
			AdvisoryID: id,
			RunID:      summary.RunID,
			Size:       int64(len(body)),
			SHA256:     hex.EncodeToString(sum[:]),
			FetchedAt:  f.now(),
		}
		if err := f.Manifest.RecordAdvisory(ctx, entry); err != nil {
			// The document is already on disk; a manifest miss is not
			// a fetch failure.
			f.warn("Manifest write failed", zap.String("advisory_id", id), zap.Error(err))
		}
	}

	f.debug("Saved advisory", zap.String("advisory_id", id), zap.String("path", target))
	return nil
}

func (f *Fetcher) pageSize() int {
	if f.PageSize > 0 {
		return f.PageSize
	}
	return defaultPageSize
}

func (f *Fetcher) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}

func (f *Fetcher) warn(msg string, fields ...zap.Field) {
	if f.Logger != nil {
		f.Logger.Warn(msg, fields...)
	}
}

func (f *Fetcher) debug(msg string, fields ...zap.Field) {
	if f.Logger != nil {
		f.Logger.Debug(msg, fields...)
	}
}

// pager walks the listing endpoint as a lazy, finite, non-restartable
// sequence of record pages. Next returns nil records once the sequence is
// exhausted.
type pager struct {
	client   Getter
	path     string
	base     url.Values
	pageSize int

	index   int
	done    bool
	lastKey string
}

func (p *pager) Next(ctx context.Context) ([]core.AdvisoryRecord, error) {
	if p.done {
		return nil, nil
	}

	params := url.Values{}
	for key, values := range p.base {
		params[key] = values
	}
	params.Set("pageIndex", strconv.Itoa(p.index+1))
	params.Set("pageSize", strconv.Itoa(p.pageSize))

	var page listingPage
	if _, err := p.client.GetJSON(ctx, p.path, params, &page); err != nil {
		p.done = true
		return nil, err
	}
	p.index++

	records := page.Advisories
	if len(records) == 0 {
		p.done = true
		return nil, nil
	}

	// Some deployments ignore the paging parameters and return the full
	// listing on every page; a repeated leading record means we are done.
	key := records[0].AdvisoryID
	if p.index > 1 && key == p.lastKey {
		p.done = true
		return nil, nil
	}
	p.lastKey = key

	if len(records) < p.pageSize {
		p.done = true
	}
	return records, nil
}

// listingPage tolerates both response shapes the API is known to produce:
// an {"advisories": [...]} wrapper and a bare array.
type listingPage struct {
	Advisories []core.AdvisoryRecord
}

func (l *listingPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &l.Advisories)
	}

	var wrapper struct {
		Advisories []core.AdvisoryRecord `json:"advisories"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	l.Advisories = wrapper.Advisories
	return nil
}
