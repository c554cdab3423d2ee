package support

import (
	"math/rand/v2"
	"net/http"

	"github.com/corpix/uarand"
)

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9,en-US;q=0.8",
	"es-ES,es;q=0.9,en;q=0.8",
	"de-DE,de;q=0.9,en;q=0.8",
	"fr-FR,fr;q=0.9,en;q=0.7",
}

func RandomUserAgent() string {
	return uarand.GetRandom()
}

// RandomIdentityHeaders returns a browser-like header set with a randomly chosen user agent.
func RandomIdentityHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", RandomUserAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}
