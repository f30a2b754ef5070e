package store

import "github.com/pivotmedia/newsroom/internal/story"

// TableNames maps logical entities to backend table names. Defaults
// match the production bases; config can override any of them.
type TableNames struct {
	Articles     string `yaml:"articles"`
	Selects      string `yaml:"selects"`
	Prefilter    string `yaml:"prefilter"`
	Issues       string `yaml:"issues"`
	SignalIssues string `yaml:"signal_issues"`
	IssueStories string `yaml:"issue_stories"`
	SignalStories string `yaml:"signal_stories"`
	IssuesFinal  string `yaml:"issues_final"`
	Archive      string `yaml:"archive"`
}

// DefaultTableNames returns the production table names.
func DefaultTableNames() TableNames {
	return TableNames{
		Articles:      "Articles",
		Selects:       "Newsletter Selects",
		Prefilter:     "Pre-Filter Log",
		Issues:        "Selected Slots",
		SignalIssues:  "Signal Selected Slots",
		IssueStories:  "Issue Stories",
		SignalStories: "Signal Issue Stories",
		IssuesFinal:   "Newsletter Issues Final",
		Archive:       "Newsletter Issues Archive",
	}
}

// Store is the typed facade over the tabular datastore. One instance
// serves both newsletter variants; variant-specific tables are picked
// per call.
type Store struct {
	client *Client
	tables TableNames
}

// New builds the facade over a datastore client.
func New(client *Client, tables TableNames) *Store {
	empty := TableNames{}
	if tables == empty {
		tables = DefaultTableNames()
	}
	return &Store{client: client, tables: tables}
}

// Client exposes the underlying datastore client for callers that need
// raw access (admin API previews).
func (s *Store) Client() *Client {
	return s.client
}

// issuesTable returns the working issue table for a variant.
func (s *Store) issuesTable(v story.Variant) string {
	if v == story.VariantSignal {
		return s.tables.SignalIssues
	}
	return s.tables.Issues
}

// storiesTable returns the decorated-story table for a variant.
func (s *Store) storiesTable(v story.Variant) string {
	if v == story.VariantSignal {
		return s.tables.SignalStories
	}
	return s.tables.IssueStories
}
