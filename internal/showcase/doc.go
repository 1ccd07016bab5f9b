// Package showcase defines the record, content, and component contracts shared
// by the showcase crawler: the fetcher renders a listing page, the extractor
// turns it into Project records, and the dataset writer persists them.
package showcase
