package patrol

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"transcode-patrol/internal/mediaserver"
)

// ServerAPI is the slice of the media-server client the patrol needs. The
// concrete *mediaserver.Client satisfies it.
type ServerAPI interface {
	ServerName() string
	Sessions(ctx context.Context) ([]mediaserver.Session, error)
	Item(ctx context.Context, itemID string) (*mediaserver.Item, error)
	SendMessage(ctx context.Context, sessionID, header, text string, displayTimeout time.Duration) error
	StopPlayback(ctx context.Context, sessionID string) error
}

// SourceInfo is the resolved true source-media attributes for a session.
// Resolved tells whether it came from the item metadata lookup or from the
// session object itself (which may describe the transcoded output instead of
// the source -- a known degraded fallback).
type SourceInfo struct {
	Width      int
	Height     int
	VideoRange string
	Codec      string
	Channels   int
	SampleRate int
	Resolved   bool
}

// SourceResolver looks up an item's real stream metadata. A transcoding
// session reports its *output* resolution, so trusting the session alone
// would let 4K sources masquerade as 1080p.
type SourceResolver struct {
	api     ServerAPI
	timeout time.Duration
	log     zerolog.Logger
}

// NewSourceResolver builds a resolver for one server.
func NewSourceResolver(api ServerAPI, timeout time.Duration, log zerolog.Logger) *SourceResolver {
	return &SourceResolver{api: api, timeout: timeout, log: log}
}

// Resolve returns the best source info available for the session. Lookup
// failures are non-fatal: the session-embedded streams are used instead, and
// a zero SourceInfo comes back when even those are missing.
func (r *SourceResolver) Resolve(ctx context.Context, sess mediaserver.Session) SourceInfo {
	item := sess.NowPlayingItem
	if item == nil {
		return SourceInfo{}
	}

	if item.ID != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		fetched, err := r.api.Item(lookupCtx, item.ID)
		if err != nil {
			r.log.Warn().Err(err).
				Str("item_id", item.ID).
				Msg("item metadata lookup failed, falling back to session stream info")
		} else if info, ok := sourceFromStreams(firstSourceStreams(fetched), item.MediaType); ok {
			info.Resolved = true
			return info
		}
	}

	info, _ := sourceFromStreams(item.MediaStreams, item.MediaType)
	return info
}

func firstSourceStreams(item *mediaserver.Item) []mediaserver.MediaStream {
	if item == nil || len(item.MediaSources) == 0 {
		return nil
	}
	return item.MediaSources[0].MediaStreams
}

// sourceFromStreams extracts the attributes the decision engine cares about:
// the first video stream for video media, the first audio stream otherwise.
func sourceFromStreams(streams []mediaserver.MediaStream, mediaType string) (SourceInfo, bool) {
	if mediaType == "Video" {
		video, ok := mediaserver.FirstStream(streams, "Video")
		if !ok {
			return SourceInfo{}, false
		}
		return SourceInfo{
			Width:      video.Width,
			Height:     video.Height,
			VideoRange: video.SourceRange(),
			Codec:      video.Codec,
		}, true
	}

	audio, ok := mediaserver.FirstStream(streams, "Audio")
	if !ok {
		return SourceInfo{}, false
	}
	return SourceInfo{
		Codec:      audio.Codec,
		Channels:   audio.Channels,
		SampleRate: audio.SampleRate,
	}, true
}
