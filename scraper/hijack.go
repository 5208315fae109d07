package scraper

import (
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockableTypes maps config names to the resource types a feed page can
// load without. Media and Script are not listed: the player needs both.
var blockableTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
}

// adDomains are ad and tracking hosts that feed pages embed between cards.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"scorecardresearch.com": {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"chartbeat.com":         {},
	"consensu.org":          {},
}

// audioExts identify audio files requested outside a <audio> element, for
// example through fetch() by the player script.
var audioExts = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".opus": {}, ".wav": {},
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// verdict is what the filter does with one request.
type verdict int

const (
	allow verdict = iota
	allowMedia
	blockType
	blockAd
)

// requestFilter decides per request whether a feed tab may load it and
// counts the outcome. Audio always passes, even from an ad host, so the
// play-to-load interaction is never starved.
type requestFilter struct {
	blocked  map[proto.NetworkResourceType]struct{}
	blockAds bool
	router   *rod.HijackRouter

	media     atomic.Int64
	byType    atomic.Int64
	byAd      atomic.Int64
	continued atomic.Int64
}

func newRequestFilter(blockedTypes []string, blockAds bool) *requestFilter {
	f := &requestFilter{
		blocked:  make(map[proto.NetworkResourceType]struct{}, len(blockedTypes)),
		blockAds: blockAds,
	}
	for _, name := range blockedTypes {
		if rt, ok := blockableTypes[name]; ok {
			f.blocked[rt] = struct{}{}
		} else {
			slog.Warn("resource type cannot be blocked, ignoring", "type", name)
		}
	}
	return f
}

// active reports whether the filter would ever block anything.
func (f *requestFilter) active() bool {
	return len(f.blocked) > 0 || f.blockAds
}

func (f *requestFilter) decide(rt proto.NetworkResourceType, rawURL string) verdict {
	u, _ := url.Parse(rawURL)
	if rt == proto.NetworkResourceTypeMedia || (u != nil && isAudioPath(u.Path)) {
		return allowMedia
	}
	if _, ok := f.blocked[rt]; ok {
		return blockType
	}
	if f.blockAds && u != nil && isAdDomain(u.Hostname()) {
		return blockAd
	}
	return allow
}

func (f *requestFilter) record(v verdict) {
	switch v {
	case allowMedia:
		f.media.Add(1)
	case blockType:
		f.byType.Add(1)
	case blockAd:
		f.byAd.Add(1)
	default:
		f.continued.Add(1)
	}
}

// attach installs the filter on page. It does nothing when the filter
// would never block.
func (f *requestFilter) attach(page *rod.Page) {
	if !f.active() {
		return
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		v := f.decide(ctx.Request.Type(), ctx.Request.URL().String())
		f.record(v)
		if v == blockType || v == blockAd {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()
	f.router = router
}

// stop removes the interceptor and logs what it did for this tab.
func (f *requestFilter) stop() {
	if f.router == nil {
		return
	}
	_ = f.router.Stop()
	f.router = nil
	slog.Debug("request filter stopped",
		"continued", f.continued.Load(),
		"media", f.media.Load(),
		"blockedByType", f.byType.Load(),
		"blockedAds", f.byAd.Load(),
	)
}

func isAudioPath(p string) bool {
	_, ok := audioExts[strings.ToLower(path.Ext(p))]
	return ok
}
