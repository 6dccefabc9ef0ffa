package engine

// Decision is the verdict of the search-result pagination policy
type Decision struct {
	Continue bool
	NextURL  string
	Reason   string
}

// Paginate decides what follows a processed result page. A page with a row
// count other than fullPageSize is taken to be the last one.
func Paginate(rows, fullPageSize int, nextURL string) Decision {
	switch {
	case rows == 0:
		return Decision{Reason: "no rows"}
	case rows != fullPageSize:
		return Decision{Reason: "partial page"}
	case nextURL == "":
		return Decision{Reason: "no next page link"}
	default:
		return Decision{Continue: true, NextURL: nextURL, Reason: "full page"}
	}
}
