// Package resource turns stored bookmarks into link-annotated representations.
package resource

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookmarks/bookmarks/internal/model"
)

// Link relation names.
const (
	RelSelf        = "self"
	RelBookmarks   = "bookmarks"
	RelBookmarkURI = "bookmark-uri"
)

// Link is a single navigable address.
type Link struct {
	Href string `json:"href"`
}

// Links is the fixed set of links carried by every bookmark resource.
type Links struct {
	Self        Link `json:"self"`
	Bookmarks   Link `json:"bookmarks"`
	BookmarkURI Link `json:"bookmark-uri"`
}

// BookmarkBody is the public part of a bookmark.
type BookmarkBody struct {
	ID          int64     `json:"id"`
	URI         string    `json:"uri"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookmarkResource is a bookmark plus its links. It is a value: build it
// with Assembler.Assemble and do not modify it afterwards.
type BookmarkResource struct {
	Bookmark BookmarkBody `json:"bookmark"`
	Links    Links        `json:"_links"`
}

// BookmarkCollection is the payload of a bookmark listing.
type BookmarkCollection struct {
	Embedded struct {
		Resources []BookmarkResource `json:"bookmarkResourceList"`
	} `json:"_embedded"`
}

// Assembler computes links from a fixed base URL. It never performs I/O.
type Assembler struct {
	baseURL string
}

// NewAssembler creates an Assembler rooted at baseURL.
func NewAssembler(baseURL string) *Assembler {
	return &Assembler{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// BookmarksURL is the address of username's bookmark collection.
func (a *Assembler) BookmarksURL(username string) string {
	return a.baseURL + "/" + url.PathEscape(username) + "/bookmarks"
}

// BookmarkURL is the address of one bookmark under its owner's collection.
func (a *Assembler) BookmarkURL(username string, id int64) string {
	return a.BookmarksURL(username) + "/" + strconv.FormatInt(id, 10)
}

// Assemble builds the resource for b. b.Owner must be populated.
func (a *Assembler) Assemble(b *model.Bookmark) BookmarkResource {
	owner := b.OwnerUsername()
	return BookmarkResource{
		Bookmark: BookmarkBody{
			ID:          b.ID,
			URI:         b.URI,
			Description: b.Description,
			CreatedAt:   b.CreatedAt,
		},
		Links: Links{
			Self:        Link{Href: a.BookmarkURL(owner, b.ID)},
			Bookmarks:   Link{Href: a.BookmarksURL(owner)},
			BookmarkURI: Link{Href: b.URI},
		},
	}
}

// AssembleAll builds a collection. An empty input yields an empty list, never null.
func (a *Assembler) AssembleAll(bookmarks []*model.Bookmark) BookmarkCollection {
	var c BookmarkCollection
	c.Embedded.Resources = make([]BookmarkResource, 0, len(bookmarks))
	for _, b := range bookmarks {
		c.Embedded.Resources = append(c.Embedded.Resources, a.Assemble(b))
	}
	return c
}
