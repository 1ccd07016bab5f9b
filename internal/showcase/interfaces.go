package showcase

import "context"

// PageFetcher renders one listing page. Any failure, whether a timeout, a
// transport error, or a browser crash, comes back as a non-nil error.
type PageFetcher interface {
	Fetch(ctx context.Context, page int) (Content, error)
}

// Extractor turns rendered content into candidate records. It never fails;
// an unusable page yields an empty slice.
type Extractor interface {
	Extract(content Content) []Project
}

// PageWriter appends one page worth of records to the dataset.
type PageWriter interface {
	Write(ctx context.Context, page int, records []Project, firstOfRun bool) error
}
