package render

// schema.org shapes emitted as JSON-LD. Optional members use omitempty so an
// absent value drops the key instead of emitting null.

const schemaContext = "https://schema.org"

type organization struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Logo string `json:"logo,omitempty"`
}

type postalAddress struct {
	Type     string `json:"@type"`
	Locality string `json:"addressLocality"`
}

type place struct {
	Type    string        `json:"@type"`
	Address postalAddress `json:"address"`
}

type quantitativeValue struct {
	Type     string  `json:"@type"`
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
	UnitText string  `json:"unitText"`
}

type monetaryAmount struct {
	Type     string            `json:"@type"`
	Currency string            `json:"currency"`
	Value    quantitativeValue `json:"value"`
}

type jobPosting struct {
	Context              string          `json:"@context,omitempty"`
	Type                 string          `json:"@type"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	URL                  string          `json:"url,omitempty"`
	HiringOrganization   organization    `json:"hiringOrganization"`
	JobLocation          *place          `json:"jobLocation,omitempty"`
	JobLocationType      string          `json:"jobLocationType,omitempty"`
	EmploymentType       string          `json:"employmentType,omitempty"`
	DatePosted           string          `json:"datePosted,omitempty"`
	ValidThrough         string          `json:"validThrough,omitempty"`
	BaseSalary           *monetaryAmount `json:"baseSalary,omitempty"`
	Industry             string          `json:"industry,omitempty"`
	OccupationalCategory string          `json:"occupationalCategory,omitempty"`
}

type listItem struct {
	Type     string `json:"@type"`
	Position int    `json:"position"`
	Name     string `json:"name,omitempty"`
	Item     any    `json:"item,omitempty"`
}

type breadcrumbList struct {
	Context string     `json:"@context"`
	Type    string     `json:"@type"`
	Items   []listItem `json:"itemListElement"`
}

type itemList struct {
	Context string     `json:"@context"`
	Type    string     `json:"@type"`
	Items   []listItem `json:"itemListElement"`
}

type searchAction struct {
	Type       string `json:"@type"`
	Target     string `json:"target"`
	QueryInput string `json:"query-input"`
}

type website struct {
	Context         string       `json:"@context"`
	Type            string       `json:"@type"`
	Name            string       `json:"name"`
	URL             string       `json:"url"`
	Description     string       `json:"description"`
	PotentialAction searchAction `json:"potentialAction"`
}
