package scraper

import (
	"strings"

	"proxyfinder/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// ParseProxies extracts ip:port candidates from a fetched source body. Candidates are not
// validated here.
func ParseProxies(content, strategy string) []string {
	switch strategy {
	case domain.ParserTable:
		return parseTable(content)
	case domain.ParserPlain:
		return parsePlain(content)
	default:
		log.Warn("Unknown parser strategy", "strategy", strategy)
		return nil
	}
}

// parseTable reads the first table of an HTML document, skipping its header row. The
// address is taken from the first cell and the port from the second.
func parseTable(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		log.Debug("Parse html table", "error", err)
		return nil
	}

	var proxies []string
	doc.Find("table").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		ip := strings.TrimSpace(cells.Eq(0).Text())
		port := strings.TrimSpace(cells.Eq(1).Text())
		proxies = append(proxies, ip+":"+port)
	})

	return proxies
}

func parsePlain(content string) []string {
	var proxies []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		host, _, found := strings.Cut(line, ":")
		if !found || !strings.Contains(host, ".") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies
}
