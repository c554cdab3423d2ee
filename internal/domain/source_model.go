package domain

const (
	ParserTable = "table"
	ParserPlain = "plain"
)

// Source is one public listing page and the strategy used to pull addresses out of it.
type Source struct {
	URL        string            `json:"url"`
	ParserType string            `json:"parser_type"`
	Headers    map[string]string `json:"headers,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}
