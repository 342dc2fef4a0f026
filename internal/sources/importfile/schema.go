package importfile

// Config is the root of the seed import file.
type Config struct {
	Lists []ListEntry `yaml:"lists"`
}

// ListEntry seeds one record: a code and its initial bookmark list.
type ListEntry struct {
	Code      string          `yaml:"code"`
	Bookmarks []BookmarkEntry `yaml:"bookmarks"`
}

// BookmarkEntry mirrors the wire bookmark, in YAML form.
type BookmarkEntry struct {
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	ImageLink   string `yaml:"imagelink"`
	Description string `yaml:"description"`
	TS          int64  `yaml:"ts"`
}
