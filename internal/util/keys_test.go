package util

import "testing"

func TestKeys(t *testing.T) {
	cases := map[string]string{
		ItemsKey("launchdarkly", "features"):     "launchdarkly:features",
		InitedKey("launchdarkly"):                "launchdarkly:$inited",
		BigSegmentIncludeKey("p", "abc"):         "p:big_segment_include:abc",
		BigSegmentExcludeKey("p", "abc"):         "p:big_segment_exclude:abc",
		BigSegmentsSyncTimeKey("p"):              "p:big_segments_synchronized_on",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("key = %q, want %q", got, want)
		}
	}
}
