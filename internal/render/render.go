// Package render produces the static HTML served to crawlers: job pages,
// the homepage listing, the 410 page and minimal error pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Defaults applied by New.
const (
	DefaultSiteName     = "SEO Jobs in Europe"
	DefaultTrackingPath = "/track/bot-visit"

	descriptionLimit = 155
	excerptLimit     = 150
	listingLimit     = 20
	maxCardTags      = 3
	defaultValidity  = 30 * 24 * time.Hour
)

// commonTags are matched against description and requirements when a job
// carries no tags of its own.
var commonTags = []string{
	"technical seo", "enterprise seo", "local seo", "e-commerce seo",
	"content seo", "link building",
	"google analytics", "google ads", "ppc", "sem",
	"javascript seo", "international seo", "mobile seo",
}

// Config describes the public site.
type Config struct {
	BaseURL      string
	SiteName     string
	TrackingPath string
}

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	baseURL      string
	siteName     string
	trackingPath string
}

// New builds a Renderer, filling defaults.
func New(cfg Config) *Renderer {
	r := &Renderer{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		siteName:     cfg.SiteName,
		trackingPath: cfg.TrackingPath,
	}
	if r.siteName == "" {
		r.siteName = DefaultSiteName
	}
	if r.trackingPath == "" {
		r.trackingPath = DefaultTrackingPath
	}
	if !strings.HasPrefix(r.trackingPath, "/") {
		r.trackingPath = "/" + r.trackingPath
	}
	return r
}

// BaseURL returns the site origin without a trailing slash.
func (r *Renderer) BaseURL() string { return r.baseURL }

type crumb struct {
	Name string
	URL  string
}

type jobPage struct {
	SiteName        string
	MetaTitle       string
	MetaDescription string
	CanonicalURL    string
	Posting         jobPosting
	Breadcrumbs     breadcrumbList
	Crumbs          []crumb
	Title           string
	Company         string
	Location        string
	Salary          string
	JobType         string
	Description     string
	Requirements    string
	ApplyURL        string
	PixelURL        string
}

// Job renders the page for job requested under slug. The canonical URL uses
// the requested slug.
func (r *Renderer) Job(job vacancy.Job, slug string, now time.Time) ([]byte, error) {
	title := Sanitize(job.Title)
	company := orDefault(Sanitize(job.CompanyName), "Company")
	location := orDefault(Sanitize(job.City), "Remote")
	description := Sanitize(job.Description)
	crumbCity := orDefault(Sanitize(job.City), "Unknown")
	crumbTitle := orDefault(title, "Job") + " - " + crumbCity

	metaDescription := title + " position available. Apply now!"
	if description != "" {
		metaDescription = Truncate(description, descriptionLimit)
	}
	canonical := r.baseURL + "/job/" + slug
	cityURL := r.baseURL + "/jobs/city/" + url.PathEscape(strings.ToLower(crumbCity))

	page := jobPage{
		SiteName:        r.siteName,
		MetaTitle:       fmt.Sprintf("%s, %s - %s", title, company, r.siteName),
		MetaDescription: metaDescription,
		CanonicalURL:    canonical,
		Posting:         r.posting(job, now),
		Breadcrumbs: breadcrumbList{
			Context: schemaContext,
			Type:    "BreadcrumbList",
			Items: []listItem{
				{Type: "ListItem", Position: 1, Name: "Jobs", Item: r.baseURL},
				{Type: "ListItem", Position: 2, Name: "SEO Jobs in " + crumbCity, Item: cityURL},
				{Type: "ListItem", Position: 3, Name: crumbTitle, Item: canonical},
			},
		},
		Crumbs: []crumb{
			{Name: "Jobs", URL: r.baseURL},
			{Name: "SEO Jobs in " + crumbCity, URL: cityURL},
			{Name: crumbTitle},
		},
		Title:        title,
		Company:      company,
		Location:     location,
		Salary:       Salary(job),
		JobType:      Sanitize(job.JobType),
		Description:  description,
		Requirements: Sanitize(job.Requirements),
		ApplyURL:     job.JobURL,
		PixelURL: r.pixel([][2]string{
			{"job", slug},
			{"bot", "true"},
			{"prerendered", "true"},
			{"timestamp", strconv.FormatInt(now.UnixMilli(), 10)},
		}),
	}
	if page.Crumbs[0].URL == "" {
		page.Crumbs[0].URL = "/"
	}
	return execute("job.html", page)
}

func (r *Renderer) posting(job vacancy.Job, now time.Time) jobPosting {
	title := Sanitize(job.Title)
	company := orDefault(Sanitize(job.CompanyName), "Company")
	p := jobPosting{
		Context:     schemaContext,
		Type:        "JobPosting",
		Title:       title,
		Description: orDefault(Sanitize(job.Description), title+" position at "+company),
		HiringOrganization: organization{
			Type: "Organization",
			Name: company,
			URL:  orDefault(job.CompanyWebsite, r.baseURL),
			Logo: job.CompanyLogo,
		},
		EmploymentType:       orDefault(job.JobType, "FULL_TIME"),
		DatePosted:           formatDate(job.CreatedAt, now),
		ValidThrough:         formatDate(job.ExpiresAt, now.Add(defaultValidity)),
		Industry:             Sanitize(job.Category),
		OccupationalCategory: Sanitize(strings.Join(job.Tags, ", ")),
	}
	if isRemote(job.City) {
		p.JobLocationType = "TELECOMMUTE"
	} else {
		p.JobLocation = newPlace(Sanitize(job.City))
	}
	if job.ShowSalary() {
		p.BaseSalary = &monetaryAmount{
			Type:     "MonetaryAmount",
			Currency: job.Currency(),
			Value: quantitativeValue{
				Type:     "QuantitativeValue",
				MinValue: *job.SalaryMin,
				MaxValue: *job.SalaryMax,
				UnitText: "YEAR",
			},
		}
	}
	return p
}

type stats struct {
	Jobs      int
	Cities    int
	Companies int
}

type card struct {
	Title   string
	Company string
	City    string
	URL     string
	Logo    string
	Salary  string
	Excerpt string
	Tags    []string
}

type homePage struct {
	SiteName         string
	Title            string
	Description      string
	ShortDescription string
	BaseURL          string
	Image            string
	Site             website
	Listing          itemList
	Stats            stats
	Cards            []card
	PixelURL         string
}

// Homepage renders the landing page for jobs, which the caller has already
// filtered and ordered.
func (r *Renderer) Homepage(jobs []vacancy.Job, now time.Time) ([]byte, error) {
	page := homePage{
		SiteName:         r.siteName,
		Title:            r.siteName + " - Top SEO Careers & Opportunities",
		Description:      fmt.Sprintf("Discover %d SEO job opportunities across Europe. Technical SEO, Content Marketing, Link Building, Enterprise SEO positions available.", len(jobs)),
		ShortDescription: fmt.Sprintf("Discover %d SEO job opportunities across Europe.", len(jobs)),
		BaseURL:          r.baseURL,
		Image:            r.baseURL + "/seo-job-board.svg",
		Site: website{
			Context:     schemaContext,
			Type:        "WebSite",
			Name:        r.siteName,
			URL:         r.baseURL,
			Description: "Find the latest SEO jobs in European cities.",
			PotentialAction: searchAction{
				Type:       "SearchAction",
				Target:     r.baseURL + "/search?q={search_term_string}",
				QueryInput: "required name=search_term_string",
			},
		},
		Listing:  itemList{Context: schemaContext, Type: "ItemList", Items: []listItem{}},
		Stats:    summarize(jobs),
		PixelURL: r.pixel([][2]string{
			{"page", "homepage"},
			{"bot", "true"},
			{"jobs", strconv.Itoa(len(jobs))},
			{"timestamp", strconv.FormatInt(now.UnixMilli(), 10)},
		}),
	}
	for i, job := range jobs {
		jobURL := r.baseURL + "/job/" + job.CanonicalSlug()
		if i < listingLimit {
			page.Listing.Items = append(page.Listing.Items, listItem{
				Type:     "ListItem",
				Position: i + 1,
				Item:     r.listingPosting(job, jobURL),
			})
		}
		page.Cards = append(page.Cards, r.card(job, jobURL))
	}
	return execute("homepage.html", page)
}

func (r *Renderer) listingPosting(job vacancy.Job, jobURL string) jobPosting {
	title := Sanitize(job.Title)
	company := Sanitize(job.CompanyName)
	p := jobPosting{
		Type:               "JobPosting",
		Title:              title,
		Description:        orDefault(Sanitize(job.Description), title+" position at "+company),
		HiringOrganization: organization{Type: "Organization", Name: company},
		DatePosted:         formatDate(job.CreatedAt, time.Time{}),
		URL:                jobURL,
	}
	if job.City != "" {
		p.JobLocation = newPlace(Sanitize(job.City))
	}
	return p
}

func (r *Renderer) card(job vacancy.Job, jobURL string) card {
	company := orDefault(Sanitize(job.CompanyName), "Company")
	logo := job.CompanyLogo
	if logo == "" {
		logo = "https://ui-avatars.com/api/?name=" + url.QueryEscape(company) + "&background=3b82f6&color=fff&size=48"
	}
	return card{
		Title:   Sanitize(job.Title),
		Company: company,
		City:    orDefault(Sanitize(job.City), "Remote"),
		URL:     jobURL,
		Logo:    logo,
		Salary:  Salary(job),
		Excerpt: Truncate(Sanitize(job.Description), excerptLimit),
		Tags:    cardTags(job),
	}
}

// cardTags prefers the job's own tags and falls back to keywords found in
// the description and requirements.
func cardTags(job vacancy.Job) []string {
	var out []string
	if len(job.Tags) > 0 {
		for _, tag := range job.Tags {
			if tag = Sanitize(strings.TrimSpace(tag)); tag != "" {
				out = append(out, tag)
			}
		}
		return out[:min(len(out), maxCardTags)]
	}
	text := strings.ToLower(job.Description + " " + job.Requirements)
	for _, tag := range commonTags {
		if len(out) == maxCardTags {
			break
		}
		if strings.Contains(text, tag) {
			out = append(out, tag)
		}
	}
	return out
}

func summarize(jobs []vacancy.Job) stats {
	cities := make(map[string]struct{})
	companies := make(map[string]struct{})
	for _, job := range jobs {
		if job.City != "" {
			cities[job.City] = struct{}{}
		}
		if job.CompanyName != "" {
			companies[job.CompanyName] = struct{}{}
		}
	}
	return stats{Jobs: len(jobs), Cities: len(cities), Companies: len(companies)}
}

type gonePage struct {
	BaseURL string
	URL     string
}

// Gone renders the 410 page for path.
func (r *Renderer) Gone(path string) ([]byte, error) {
	return execute("gone.html", gonePage{BaseURL: orDefault(r.baseURL, "/"), URL: r.baseURL + path})
}

type errorPage struct {
	Title   string
	Message string
	BaseURL string
}

// Error renders a minimal noindex page for status.
func (r *Renderer) Error(status int, message string) ([]byte, error) {
	return execute("error.html", errorPage{
		Title:   orDefault(http.StatusText(status), "Error"),
		Message: message,
		BaseURL: orDefault(r.baseURL, "/"),
	})
}

func (r *Renderer) pixel(params [][2]string) string {
	var b strings.Builder
	b.WriteString(r.baseURL)
	b.WriteString(r.trackingPath)
	for i, kv := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func newPlace(city string) *place {
	return &place{Type: "Place", Address: postalAddress{Type: "PostalAddress", Locality: city}}
}

func isRemote(city string) bool {
	city = strings.TrimSpace(city)
	return city == "" || strings.EqualFold(city, "remote")
}

func formatDate(ts vacancy.Timestamp, fallback time.Time) string {
	if !ts.IsZero() {
		return ts.UTC().Format(time.RFC3339)
	}
	if fallback.IsZero() {
		return ""
	}
	return fallback.UTC().Format(time.RFC3339)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
