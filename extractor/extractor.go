// Package extractor turns a books.com.tw listing page into book records.
//
// Listing pages are third-party markup that changes without notice, so the
// extractor locates the new-release block heuristically and treats every
// field except title and link as optional.
package extractor

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/bookcraw/models"
	"github.com/aluiziolira/bookcraw/parser"
	"golang.org/x/net/html"
)

// SectionMarker is the heading text of the recent releases block.
const SectionMarker = "近期新書"

var (
	sectionClass  = regexp.MustCompile(`mod_a`)
	productLink   = regexp.MustCompile(`/products/`)
	authorLink    = regexp.MustCompile(`adv_author`)
	publisherLink = regexp.MustCompile(`pubid`)
)

// Listing is the outcome of extracting one page.
type Listing struct {
	Books        []*models.Book
	SectionFound bool
	// Skipped counts item containers dropped for lacking a product link.
	Skipped int
}

// Extractor parses listing pages of a single site.
type Extractor struct {
	origin string
}

// New returns an extractor that resolves relative links against origin.
func New(origin string) *Extractor {
	return &Extractor{origin: strings.TrimRight(origin, "/")}
}

// Extract parses page and tags every record with label. It never fails:
// a page without the expected section yields an empty listing.
func (e *Extractor) Extract(page, label string) Listing {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		slog.Warn("unparseable listing page", slog.String("category", label), slog.Any("error", err))
		return Listing{Books: []*models.Book{}}
	}

	section := findSection(root)
	if section == nil {
		slog.Warn("recent releases section not found", slog.String("category", label))
		return Listing{Books: []*models.Book{}}
	}

	listing := Listing{Books: []*models.Book{}, SectionFound: true}
	goquery.NewDocumentFromNode(section).Find("div.item").Each(func(_ int, item *goquery.Selection) {
		book := e.extractItem(item, label)
		if book == nil {
			listing.Skipped++
			return
		}
		listing.Books = append(listing.Books, book)
	})

	slog.Debug("parsed recent releases",
		slog.String("category", label),
		slog.Int("books", len(listing.Books)),
		slog.Int("skipped", listing.Skipped),
	)
	return listing
}

func findSection(root *html.Node) *html.Node {
	heading := findFirst(root, func(n *html.Node) bool {
		return isElement(n, "h3") && strings.Contains(nodeText(n), SectionMarker)
	})
	if heading == nil {
		return nil
	}
	return closest(heading, func(n *html.Node) bool {
		return isElement(n, "div") && hasClassMatching(n, sectionClass)
	})
}

func (e *Extractor) extractItem(item *goquery.Selection, label string) *models.Book {
	link := firstLink(item.Find("h4").First(), productLink)
	if link == nil {
		return nil
	}
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return nil
	}
	href, _ := link.Attr("href")
	bookURL, ok := parser.ResolveURL(e.origin, href)
	if !ok {
		return nil
	}

	book := &models.Book{
		Title:    title,
		URL:      bookURL,
		Category: label,
	}

	if author := firstLink(item, authorLink); author != nil {
		book.Author = strings.TrimSpace(author.Text())
	}

	if info := item.Find("li.info").First(); info.Length() > 0 {
		if publisher := firstLink(info, publisherLink); publisher != nil {
			book.Publisher = strings.TrimSpace(publisher.Text())
		}
		book.PubDate, _ = parser.ParsePubDate(info.Text())
	}

	priceBox := item.Find("div.price_box").First()
	if priceBox.Length() == 0 {
		priceBox = item
	}
	book.Price, _ = parser.ParsePrice(priceBox.Text())

	if src, ok := item.Find("img.cover").First().Attr("src"); ok {
		book.ImageURL = parser.NormalizeImageURL(src)
	}

	return book
}

// firstLink returns the first anchor under sel whose href matches re.
func firstLink(sel *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	if sel.Length() == 0 {
		return nil
	}
	link := sel.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return re.MatchString(href)
	}).First()
	if link.Length() == 0 {
		return nil
	}
	return link
}
