package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Image sentinels persisted in place of a URL. Each names why no usable image
// was found.
const (
	NoImage           = "No image found"
	NoValidSrcset     = "No valid entries in srcset"
	SrcsetParseError  = "Error in srcset parsing"
	NoDirectImageLink = "No direct image link available"
)

// ImageKind classifies the result of resolving an image container.
type ImageKind int

// Resolution outcomes, in the order the resolver tries them.
const (
	ImageNotFound ImageKind = iota
	ImageResolved
	ImageInvalidCandidates
	ImageParseError
	ImageNoDirectLink
)

// String returns a short label used for logs and metric labels.
func (k ImageKind) String() string {
	switch k {
	case ImageResolved:
		return "resolved"
	case ImageInvalidCandidates:
		return "invalid_candidates"
	case ImageParseError:
		return "parse_error"
	case ImageNoDirectLink:
		return "no_direct_link"
	default:
		return "not_found"
	}
}

// ImageOutcome is the tagged result of image resolution. URL is set only when
// Kind is ImageResolved.
type ImageOutcome struct {
	Kind ImageKind
	URL  string
}

// Source renders the outcome as the string persisted in the record.
func (o ImageOutcome) Source() string {
	switch o.Kind {
	case ImageResolved:
		return o.URL
	case ImageInvalidCandidates:
		return NoValidSrcset
	case ImageParseError:
		return SrcsetParseError
	case ImageNoDirectLink:
		return NoDirectImageLink
	default:
		return NoImage
	}
}

// IsImageSentinel reports whether s is one of the image sentinels.
func IsImageSentinel(s string) bool {
	switch s {
	case NoImage, NoValidSrcset, SrcsetParseError, NoDirectImageLink:
		return true
	}
	return false
}

// ResolveImage picks the best usable image URL inside container. A direct
// absolute src wins; otherwise the widest srcset candidate is chosen, with
// root-relative URLs rebased onto baseURL.
func ResolveImage(container *goquery.Selection, baseURL string) ImageOutcome {
	if container == nil || container.Length() == 0 {
		return ImageOutcome{Kind: ImageNotFound}
	}
	img := container.Find("img").First()
	if img.Length() == 0 {
		return ImageOutcome{Kind: ImageNotFound}
	}

	if src, _ := img.Attr("src"); strings.HasPrefix(src, "http") {
		return ImageOutcome{Kind: ImageResolved, URL: src}
	}

	if srcset, _ := img.Attr("srcset"); srcset != "" {
		return resolveSrcset(srcset, baseURL)
	}
	return ImageOutcome{Kind: ImageNoDirectLink}
}

type candidate struct {
	url   string
	width string
}

func resolveSrcset(srcset, baseURL string) ImageOutcome {
	var candidates []candidate
	for _, entry := range strings.Split(srcset, ",") {
		tokens := strings.Fields(entry)
		if len(tokens) != 2 || !strings.HasSuffix(tokens[1], "w") {
			continue
		}
		candidates = append(candidates, candidate{url: tokens[0], width: tokens[1]})
	}
	if len(candidates) == 0 {
		return ImageOutcome{Kind: ImageInvalidCandidates}
	}

	best := -1
	bestWidth := 0
	for i, c := range candidates {
		width, err := strconv.Atoi(strings.TrimSuffix(c.width, "w"))
		if err != nil {
			return ImageOutcome{Kind: ImageParseError}
		}
		if best < 0 || width > bestWidth {
			best, bestWidth = i, width
		}
	}

	url := candidates[best].url
	if strings.HasPrefix(url, "/") {
		url = baseURL + url
	}
	return ImageOutcome{Kind: ImageResolved, URL: url}
}
