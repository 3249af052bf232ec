package mediaserver

import "strings"

// Placeholder credential left behind by copy-pasted example configs. Treated
// the same as a missing key.
const placeholderAPIKey = "YOUR_API_KEY_HERE"

// ServerConfig describes one media server to patrol.
type ServerConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "jellyfin" or "emby"; both speak the same API here
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// HasCredentials reports whether the server has a usable API key configured.
func (s ServerConfig) HasCredentials() bool {
	key := strings.TrimSpace(s.APIKey)
	return key != "" && key != placeholderAPIKey
}

// Session is one entry from GET /Sessions. Field names follow the server's
// PascalCase JSON.
type Session struct {
	ID              string           `json:"Id"`
	UserName        string           `json:"UserName"`
	Client          string           `json:"Client"`
	PlayState       PlayState        `json:"PlayState"`
	NowPlayingItem  *NowPlayingItem  `json:"NowPlayingItem"`
	TranscodingInfo *TranscodingInfo `json:"TranscodingInfo"`
}

// PlayState carries the declared playback method for a session.
type PlayState struct {
	PlayMethod string `json:"PlayMethod"`
}

// NowPlayingItem is the media item a session is currently playing.
type NowPlayingItem struct {
	ID           string        `json:"Id"`
	Name         string        `json:"Name"`
	MediaType    string        `json:"MediaType"`
	Container    string        `json:"Container"`
	Path         string        `json:"Path"`
	MediaStreams []MediaStream `json:"MediaStreams"`
}

// MediaStream is a single video/audio/subtitle stream. The session-level
// copy may describe the transcoded output, so the true source streams come
// from the item metadata lookup.
type MediaStream struct {
	Type           string `json:"Type"`
	Codec          string `json:"Codec"`
	Width          int    `json:"Width"`
	Height         int    `json:"Height"`
	VideoRange     string `json:"VideoRange"`
	VideoRangeType string `json:"VideoRangeType"`
	Channels       int    `json:"Channels"`
	SampleRate     int    `json:"SampleRate"`
}

// SourceRange returns the most specific dynamic-range label the server gave
// us (VideoRangeType is finer-grained than VideoRange when present).
func (m MediaStream) SourceRange() string {
	if m.VideoRangeType != "" {
		return m.VideoRangeType
	}
	return m.VideoRange
}

// TranscodingInfo is present only while the server is actively transcoding.
// Width/Height here are the transcode target, not the source.
type TranscodingInfo struct {
	Width            int      `json:"Width"`
	Height           int      `json:"Height"`
	Container        string   `json:"Container"`
	TranscodeReasons []string `json:"TranscodeReasons"`
}

// Item is the response of the item metadata lookup, carrying the true source
// streams.
type Item struct {
	ID           string        `json:"Id"`
	Name         string        `json:"Name"`
	MediaSources []MediaSource `json:"MediaSources"`
}

// MediaSource is one playable file behind an item.
type MediaSource struct {
	ID           string        `json:"Id"`
	Container    string        `json:"Container"`
	Path         string        `json:"Path"`
	MediaStreams []MediaStream `json:"MediaStreams"`
}

// FirstStream returns the first stream of the given type from the first
// media source, which is the server's primary file.
func (i *Item) FirstStream(streamType string) (MediaStream, bool) {
	if i == nil || len(i.MediaSources) == 0 {
		return MediaStream{}, false
	}
	for _, s := range i.MediaSources[0].MediaStreams {
		if s.Type == streamType {
			return s, true
		}
	}
	return MediaStream{}, false
}

// FirstStream scans a stream list for the first stream of the given type.
func FirstStream(streams []MediaStream, streamType string) (MediaStream, bool) {
	for _, s := range streams {
		if s.Type == streamType {
			return s, true
		}
	}
	return MediaStream{}, false
}
