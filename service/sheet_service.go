package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

//go:embed templates/sheet.html
var sheetTemplates embed.FS

const itemsPerSheetPage = 9

var sheetTemplate = template.Must(template.New("sheet.html").
	Funcs(template.FuncMap{"add": func(a, b int) int { return a + b }}).
	ParseFS(sheetTemplates, "templates/sheet.html"))

// SheetService renders printable contact sheets of the gallery view
type SheetService struct {
	baseURL    string
	chromePath string
	now        func() time.Time
}

// NewSheetService creates a SheetService. baseURL is where this server is reachable by the
// headless browser; chromePath may be empty to auto-detect.
func NewSheetService(baseURL, chromePath string) *SheetService {
	return &SheetService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chromePath: chromePath,
		now:        time.Now,
	}
}

// detectChromePath returns the configured Chrome/Chromium path if it exists, then checks common
// installation paths
func detectChromePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// paginate splits items into pages of itemsPerSheetPage
func paginate(items []models.NFT) [][]models.NFT {
	var pages [][]models.NFT
	for i := 0; i < len(items); i += itemsPerSheetPage {
		pages = append(pages, items[i:min(i+itemsPerSheetPage, len(items))])
	}
	return pages
}

// describeFilters renders the active filter for the sheet header
func describeFilters(filter models.FilterState) string {
	var parts []string
	if filter.Search != "" {
		parts = append(parts, "#"+filter.Search)
	}
	if filter.OnlySpecials {
		parts = append(parts, "1/1s only")
	}
	for traitType, values := range filter.Traits {
		if len(values) == 0 {
			continue
		}
		names := make([]string, 0, len(values))
		for v := range values {
			names = append(names, v)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", traitType, strings.Join(sortedStrings(names), "/")))
	}
	return strings.Join(sortedStrings(parts), " · ")
}

func sortedStrings(values []string) []string {
	sort.Strings(values)
	return values
}

// RenderHTML renders the contact sheet for items, which should already be filtered and sorted
func (s *SheetService) RenderHTML(items []models.NFT, filter models.FilterState) (string, error) {
	data := struct {
		Title       string
		Total       int
		Filters     string
		Pages       [][]models.NFT
		ImageBase   string
		GeneratedAt string
	}{
		Title:       "DEAD BEARS",
		Total:       len(items),
		Filters:     describeFilters(filter),
		Pages:       paginate(items),
		ImageBase:   s.baseURL,
		GeneratedAt: s.now().UTC().Format("2006-01-02 15:04 MST"),
	}

	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// GeneratePDF prints the HTML contact sheet served at {baseURL}/api/gallery/sheet?{query}&format=html
// with headless Chrome
func (s *SheetService) GeneratePDF(ctx context.Context, query string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // Required for running in Docker/containers
	)
	if chromePath := detectChromePath(s.chromePath); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	} else {
		logger.Warn("⚠️  Chrome not found, letting chromedp auto-detect")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	renderURL := fmt.Sprintf("%s/api/gallery/sheet?%s", s.baseURL, withFormat(query, "html"))
	logger.Info("📄 Rendering contact sheet PDF from %s", renderURL)

	var pdfBuf []byte
	err := chromedp.Run(chromedpCtx,
		chromedp.EmulateViewport(794, 1123), // A4 at 96 DPI
		chromedp.Navigate(renderURL),
		chromedp.WaitReady("body"),
		// Wait for fonts and images to load
		chromedp.Evaluate(`
			(function() {
				return Promise.all([
					document.fonts.ready,
					Promise.all(Array.from(document.querySelectorAll('img')).map(img => {
						return new Promise((resolve) => {
							if (img.complete) { resolve(); return; }
							const timeout = setTimeout(() => resolve(), 5000);
							img.onload = () => { clearTimeout(timeout); resolve(); };
							img.onerror = () => { clearTimeout(timeout); resolve(); };
						});
					}))
				]);
			})();
		`, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) }),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	logger.Info("✓ Contact sheet PDF generated (%d bytes)", len(pdfBuf))
	return pdfBuf, nil
}

// withFormat replaces the format parameter of a raw query string
func withFormat(query, format string) string {
	var kept []string
	for _, part := range strings.Split(query, "&") {
		if part == "" || strings.HasPrefix(part, "format=") {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(append(kept, "format="+format), "&")
}
