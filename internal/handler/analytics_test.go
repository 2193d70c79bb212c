package handler

import "testing"

func TestClassifyReferrer(t *testing.T) {
	const origin = "https://app.procurehub.example"
	cases := []struct {
		name     string
		referrer string
		want     string
	}{
		{"empty is direct", "", "direct"},
		{"google search", "https://www.google.com/search?q=copiers", "google"},
		{"google tld variant", "https://www.google.co.uk/url", "google"},
		{"bing", "https://www.bing.com/search", "bing"},
		{"facebook", "https://m.facebook.com/", "facebook"},
		{"linkedin", "https://www.linkedin.com/feed/", "linkedin"},
		{"twitter", "https://twitter.com/someone", "twitter"},
		{"twitter short link", "https://t.co/abc", "twitter"},
		{"x dot com", "https://x.com/someone", "twitter"},
		{"own frontend is internal", origin + "/vendors", "internal"},
		{"other site", "https://example.org/blog", "unknown"},
		{"garbage", "not a url", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReferrer(tc.referrer, origin); got != tc.want {
				t.Errorf("ClassifyReferrer(%q) = %q, want %q", tc.referrer, got, tc.want)
			}
		})
	}
}

func TestParseDevice(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		devType string
		browser string
		os      string
	}{
		{
			"chrome on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			"desktop", "Chrome", "Windows",
		},
		{
			"safari on iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"mobile", "Safari", "iOS",
		},
		{
			"edge on windows",
			"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/124.0 Safari/537.36 Edg/124.0",
			"desktop", "Edge", "Windows",
		},
		{
			"firefox on linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			"desktop", "Firefox", "Linux",
		},
		{
			"ipad",
			"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 Version/16.0 Safari/604.1",
			"tablet", "Safari", "iOS",
		},
		{
			"googlebot",
			"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			"bot", "", "",
		},
		{"empty", "", "unknown", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ParseDevice(tc.ua)
			if d.Type != tc.devType {
				t.Errorf("type = %q, want %q", d.Type, tc.devType)
			}
			if d.Browser != tc.browser {
				t.Errorf("browser = %q, want %q", d.Browser, tc.browser)
			}
			if d.OS != tc.os {
				t.Errorf("os = %q, want %q", d.OS, tc.os)
			}
		})
	}
}
