package engine

import "fmt"

// Page is the paginated list envelope.
type Page struct {
	CurrentPage  int              `json:"current_page"`
	Data         []map[string]any `json:"data"`
	FirstPageURL string           `json:"first_page_url"`
	From         *int64           `json:"from"`
	LastPage     int              `json:"last_page"`
	LastPageURL  string           `json:"last_page_url"`
	NextPageURL  *string          `json:"next_page_url"`
	Path         string           `json:"path"`
	PerPage      int              `json:"per_page"`
	PrevPageURL  *string          `json:"prev_page_url"`
	To           *int64           `json:"to"`
	Total        int64            `json:"total"`
}

// NewPage builds the envelope for one page of rows out of total matches.
// path is the absolute URL of the list endpoint without a query string.
func NewPage(rows []map[string]any, total int64, w Window, path string) Page {
	if rows == nil {
		rows = []map[string]any{}
	}
	lastPage := 1
	if w.PerPage > 0 && total > 0 {
		lastPage = int((total-1)/int64(w.PerPage) + 1)
	}

	p := Page{
		CurrentPage:  w.Page,
		Data:         rows,
		FirstPageURL: pageURL(path, 1),
		LastPage:     lastPage,
		LastPageURL:  pageURL(path, lastPage),
		Path:         path,
		PerPage:      w.PerPage,
		Total:        total,
	}
	if len(rows) > 0 {
		from := int64(w.Offset()) + 1
		to := int64(w.Offset()) + int64(len(rows))
		p.From, p.To = &from, &to
	}
	if w.Page < lastPage {
		next := pageURL(path, w.Page+1)
		p.NextPageURL = &next
	}
	if w.Page > 1 {
		prev := pageURL(path, w.Page-1)
		p.PrevPageURL = &prev
	}
	return p
}

func pageURL(path string, page int) string {
	return fmt.Sprintf("%s?page=%d", path, page)
}
