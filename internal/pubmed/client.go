package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

const (
	// DefaultBaseURL is the base URL for the NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the request rate without an API key. NCBI allows
	// 10 requests per second with a key.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// articleURLPrefix is the base of the public PubMed entry URL.
	articleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"

	// maxResponseBytes caps how much of an API response is read.
	maxResponseBytes = 10 << 20

	defaultUserAgent = "TrialSignal-PharmacovigilanceService/1.0"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

	// Timeout is the request timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the default maximum results per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// SearchOptions narrows a search query.
type SearchOptions struct {
	// MaxResults overrides the configured per-search result cap.
	MaxResults int

	// From restricts results to articles published at or after this date.
	From *time.Time

	// To restricts results to articles published at or before this date.
	To *time.Time
}

// Client talks to the PubMed E-utilities API and converts responses into
// domain articles.
type Client struct {
	config Config
	http   *httpClient
}

// New creates a PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		http: newHTTPClient(httpClientConfig{
			timeout:   cfg.Timeout,
			rateLimit: cfg.RateLimit,
			burst:     cfg.BurstSize,
		}),
	}
}

// Search runs the two-step esearch/efetch flow and returns the matching
// articles. A query phrase PubMed does not recognize yields an empty result,
// not an error.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]*domain.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}

	searchResult, err := c.esearch(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		return nil, nil
	}
	if len(searchResult.IDList.IDs) == 0 {
		return nil, nil
	}

	return c.FetchByPMIDs(ctx, searchResult.IDList.IDs)
}

// FetchByPMIDs retrieves full article records for the given PMIDs.
func (c *Client) FetchByPMIDs(ctx context.Context, pmids []string) ([]*domain.Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	set, err := c.efetch(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	articles := make([]*domain.Article, 0, len(set.Articles))
	for i := range set.Articles {
		if a := toArticle(&set.Articles[i]); a != nil {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

func (c *Client) esearch(ctx context.Context, query string, opts SearchOptions) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	if opts.From != nil || opts.To != nil {
		q.Set("datetype", "pdat")
		if opts.From != nil {
			q.Set("mindate", opts.From.Format("2006/01/02"))
		}
		if opts.To != nil {
			q.Set("maxdate", opts.To.Format("2006/01/02"))
		}
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getXML(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pubmed returned status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrStoreUnavailable)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}
	return nil
}

// toArticle converts a PubmedArticle to a domain article. Records without a
// PMID are dropped.
func toArticle(record *PubmedArticle) *domain.Article {
	citation := record.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)
	if pmid == "" {
		return nil
	}

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	return &domain.Article{
		PMID:            pmid,
		Title:           citation.Article.ArticleTitle,
		Abstract:        extractAbstract(citation.Article.Abstract),
		PublicationDate: extractPublicationDate(&citation.Article),
		Authors:         extractAuthors(citation.Article.AuthorList),
		Keywords:        extractKeywords(citation.KeywordList),
		MeshTerms:       extractMeshTerms(citation.MeshHeadingList),
		DOI:             extractDOI(&citation.Article, &record.PubmedData),
		Journal:         journal,
		ArticleURL:      articleURLPrefix + pmid + "/",
	}
}

// extractDOI checks ELocationID first, then the article ID list.
func extractDOI(article *ArticleRecord, pubmedData *PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractPublicationDate prefers the electronic ArticleDate, falling back to
// the journal issue PubDate, including Medline range dates like "2020 Jan-Feb".
func extractPublicationDate(article *ArticleRecord) *time.Time {
	for _, ad := range article.ArticleDate {
		if ad.DateType == "" || ad.DateType == "epublish" || ad.DateType == "Electronic" {
			if t := parseDate(ad.Year, ad.Month, ad.Day); t != nil {
				return t
			}
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.MedlineDate != "" {
		if year := extractYearFromMedlineDate(pubDate.MedlineDate); year > 0 {
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	if pubDate.Year != "" {
		if t := parseDate(pubDate.Year, pubDate.Month, pubDate.Day); t != nil {
			return t
		}
	}
	return nil
}

func parseDate(year, month, day string) *time.Time {
	if year == "" {
		return nil
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	d := 1
	if day != "" {
		if parsed, err := strconv.Atoi(day); err == nil {
			d = parsed
		}
	}
	t := time.Date(y, parseMonth(month), d, 0, 0, 0, 0, time.UTC)
	return &t
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

func parseMonth(month string) time.Month {
	if month == "" {
		return time.January
	}
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return time.Month(m)
	}
	if m, ok := monthNames[strings.ToLower(month)]; ok {
		return m
	}
	return time.January
}

// extractYearFromMedlineDate handles formats like "2020 Jan-Feb",
// "2020 Spring", and "2020-2021".
func extractYearFromMedlineDate(medlineDate string) int {
	parts := strings.Fields(medlineDate)
	if len(parts) == 0 {
		return 0
	}
	yearStr := strings.Split(parts[0], "-")[0]
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0
	}
	return year
}

// extractAbstract concatenates structured abstract sections, keeping labels.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}
	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors formats authors as "ForeName LastName", keeping collective
// names as is and skipping entries PubMed marks invalid.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}
		name := a.CollectiveName
		if name == "" {
			nameParts := make([]string, 0, 2)
			if a.ForeName != "" {
				nameParts = append(nameParts, a.ForeName)
			}
			if a.LastName != "" {
				nameParts = append(nameParts, a.LastName)
			}
			name = strings.Join(nameParts, " ")
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func extractKeywords(keywordList *KeywordList) []string {
	if keywordList == nil || len(keywordList.Keywords) == 0 {
		return nil
	}
	keywords := make([]string, 0, len(keywordList.Keywords))
	for _, kw := range keywordList.Keywords {
		if v := strings.TrimSpace(kw.Value); v != "" {
			keywords = append(keywords, v)
		}
	}
	return keywords
}

func extractMeshTerms(meshList *MeshHeadingList) []string {
	if meshList == nil || len(meshList.MeshHeadings) == 0 {
		return nil
	}
	terms := make([]string, 0, len(meshList.MeshHeadings))
	for _, mh := range meshList.MeshHeadings {
		if v := strings.TrimSpace(mh.DescriptorName.Value); v != "" {
			terms = append(terms, v)
		}
	}
	return terms
}
