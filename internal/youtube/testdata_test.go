package youtube

import (
	"time"

	"ytarchive/internal/retry"
)

const testChannelID = "UCuAXFkgsw1L7xaCfnd5JJOw"

// sampleFlatPlaylist is yt-dlp --flat-playlist -j output, one entry per line.
const sampleFlatPlaylist = `{"id": "aaaaaaaaaaa", "title": "Sunday Service - Brother Evans", "duration": 5400, "channel": "Tucson Tabernacle", "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw", "timestamp": 1736505600}
{"id": "bbbbbbbbbbb", "title": "Wednesday Service", "duration": 3600.5, "uploader": "Tucson Tabernacle", "upload_date": "20250108"}

{"id": "ccccccccccc", "title": "Youth Night - Guerra"}
`

const sampleAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <link rel="self" href="https://www.youtube.com/feeds/videos.xml?channel_id=UCuAXFkgsw1L7xaCfnd5JJOw"/>
  <id>yt:channel:uAXFkgsw1L7xaCfnd5JJOw</id>
  <yt:channelId>UCuAXFkgsw1L7xaCfnd5JJOw</yt:channelId>
  <title>Tucson Tabernacle</title>
  <author>
    <name>Tucson Tabernacle</name>
    <uri>https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw</uri>
  </author>
  <published>2012-03-01T00:00:00+00:00</published>
  <entry>
    <id>yt:video:aaaaaaaaaaa</id>
    <yt:videoId>aaaaaaaaaaa</yt:videoId>
    <yt:channelId>UCuAXFkgsw1L7xaCfnd5JJOw</yt:channelId>
    <title>Sunday Service - Brother Evans</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=aaaaaaaaaaa"/>
    <published>2025-01-12T18:00:00+00:00</published>
    <updated>2025-01-12T20:00:00+00:00</updated>
  </entry>
  <entry>
    <id>yt:video:bbbbbbbbbbb</id>
    <title>Wednesday Service</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=bbbbbbbbbbb"/>
    <published>2025-01-08T02:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:ccccccccccc</id>
    <title>Youth Night</title>
    <link rel="alternate" href="https://www.youtube.com/shorts/other"/>
  </entry>
</feed>`

const sampleJSON3 = `{
  "wireMagic": "pb3",
  "events": [
    {"tStartMs": 0, "dDurationMs": 1000, "id": 1, "wpWinPosId": 1},
    {"tStartMs": 0, "dDurationMs": 2500, "segs": [{"utf8": "Good morning,"}, {"utf8": " church."}]},
    {"tStartMs": 2500, "dDurationMs": 10, "segs": [{"utf8": "\n"}]},
    {"tStartMs": 2600, "dDurationMs": 3000, "segs": [{"utf8": "Turn with me to &quot;Hebrews&quot; 13:8"}]},
    {"tStartMs": 5600, "dDurationMs": 3000, "segs": [{"utf8": "  [Music]  "}]}
  ]
}`

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:02.500 align:start position:0%
Good morning,<00:00:01.000><c> church.</c>

00:00:02.500 --> 00:00:02.510
Good morning, church.

NOTE this is a comment

00:00:02.600 --> 00:00:05.600
Turn with me to &amp; Hebrews
`

// fastRetry keeps retry loops in tests short.
func fastRetry(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}
