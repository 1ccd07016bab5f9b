// Package crawler drives the showcase crawl: it walks listing pages in order,
// hands each rendered page to the extractor, appends the records to the
// dataset, and stops at the first page that yields nothing.
package crawler
