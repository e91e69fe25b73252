package domain

import (
	"strings"
	"time"
)

// Article represents a PubMed literature record against which search rules
// are evaluated. Articles are keyed by PMID and written by the sync pipeline;
// the matching core treats them as read-only.
type Article struct {
	// PMID is the PubMed identifier and primary key.
	PMID string

	// Title is the article title.
	Title string

	// Abstract is the article abstract text.
	Abstract string

	// PublicationDate is the publication date, if known.
	PublicationDate *time.Time

	// Authors is the ordered author list.
	Authors []string

	// Keywords are the author-supplied keywords.
	Keywords []string

	// MeshTerms are the MeSH headings assigned by PubMed.
	MeshTerms []string

	// DOI is the Digital Object Identifier, if present.
	DOI string

	// Journal is the publishing journal name.
	Journal string

	// ArticleURL is the link to the PubMed entry.
	ArticleURL string

	// LastScanned records when the sync pipeline last refreshed this record.
	LastScanned time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchText returns the concatenated title and abstract, used for
// text-field criterion matching.
func (a *Article) SearchText() string {
	if a.Abstract == "" {
		return a.Title
	}
	var sb strings.Builder
	sb.Grow(len(a.Title) + len(a.Abstract) + 1)
	sb.WriteString(a.Title)
	sb.WriteString(" ")
	sb.WriteString(a.Abstract)
	return sb.String()
}

// AuthorText returns the author list joined for substring matching.
func (a *Article) AuthorText() string {
	return strings.Join(a.Authors, "; ")
}

// IndexText returns keywords and MeSH terms joined for substring matching
// of adverse event criteria.
func (a *Article) IndexText() string {
	parts := make([]string, 0, len(a.Keywords)+len(a.MeshTerms))
	parts = append(parts, a.Keywords...)
	parts = append(parts, a.MeshTerms...)
	return strings.Join(parts, "; ")
}
