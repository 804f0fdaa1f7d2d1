package products

// clampPage normalizes raw query parameters: pages start at 1, the page size
// defaults to 5 and is capped at 50.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 5
	}
	if limit > 50 {
		limit = 50
	}
	return page, limit
}
