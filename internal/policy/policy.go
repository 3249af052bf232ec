package policy

import (
	"strings"
	"time"
)

// PlayMethod is how the server says it is delivering the stream.
type PlayMethod string

const (
	PlayMethodDirectPlay   PlayMethod = "DirectPlay"
	PlayMethodDirectStream PlayMethod = "DirectStream"
	PlayMethodTranscode    PlayMethod = "Transcode"
)

// MediaType classifies what kind of media a session is playing.
type MediaType string

const (
	MediaTypeVideo MediaType = "Video"
	MediaTypeAudio MediaType = "Audio"
)

// Video range values as the server reports them. Anything other than SDR
// (or empty) counts as HDR for the tone-mapping rule.
const (
	VideoRangeSDR = "SDR"
)

// Transcode reason codes we care about by name.
const (
	ReasonVideoRangeNotSupported     = "VideoRangeNotSupported"
	ReasonVideoRangeTypeNotSupported = "VideoRangeTypeNotSupported"
	ReasonContainerNotSupported      = "ContainerNotSupported"
)

// DefaultVideoTriggerReasons are the reason codes that indicate the server is
// reprocessing the video component (or is forced into it by the container).
var DefaultVideoTriggerReasons = []string{
	"VideoCodecNotSupported",
	"VideoResolutionNotSupported",
	"VideoBitrateNotSupported",
	"VideoFramerateNotSupported",
	"VideoLevelNotSupported",
	"VideoProfileNotSupported",
	"AnamorphicVideoNotSupported",
	"VideoRangeNotSupported",
	"VideoRangeTypeNotSupported",
	"ContainerNotSupported",
	"ContainerBitrateExceedsLimit",
}

// DefaultAudioTriggerReasons are the reason codes that indicate the server is
// re-encoding the audio component.
var DefaultAudioTriggerReasons = []string{
	"AudioCodecNotSupported",
	"AudioChannelsNotSupported",
	"AudioProfileNotSupported",
	"AudioSampleRateNotSupported",
	"AudioBitDepthNotSupported",
	"SecondaryAudioNotSupported",
}

// Snapshot is the normalized view of one playback session combined with the
// resolved true source-media attributes. It is built fresh every cycle and
// thrown away after the decision is acted on.
type Snapshot struct {
	SessionID  string
	UserName   string
	ClientName string

	PlayMethod PlayMethod
	MediaType  MediaType

	// True source dimensions, not the transcode target. Zero means the
	// resolver could not determine them.
	SourceWidth  int
	SourceHeight int

	// SourceVideoRange is the dynamic range of the original file (SDR,
	// HDR10, HDR10Plus, DOVI, ...). Empty when unknown.
	SourceVideoRange string

	// Informational audio attributes, used for log/reason text only.
	SourceCodec         string
	SourceAudioChannels int
	SourceSampleRate    int

	// HasTranscodeInfo tells whether the server included a transcoding-info
	// block at all. An absent block is a different state from a present
	// block with an empty reason list.
	HasTranscodeInfo bool
	TranscodeReasons []string

	Container string
	FilePath  string
}

// Message is the template shown to the user right before their stream is
// stopped.
type Message struct {
	Header         string
	Body           string
	DisplayTimeout time.Duration
}

// Policy holds every operator-set knob the decision engine consults. It is
// built once at startup and passed by value into each evaluation, so a single
// polling cycle always sees one consistent configuration.
type Policy struct {
	// Resolution gate. A source matches when its width OR height reaches
	// the minimum. (0, 0) matches everything.
	MinWidth  int
	MinHeight int

	CheckAudio            bool
	AllowContainerChanges bool
	IgnoreStrmFiles       bool

	// AssumeWorstOnMissingReasons keeps the original fail-safe: a present
	// transcoding-info block with no reasons is treated as a video/audio
	// transcode. Disable it if the server legitimately transcodes for
	// reasons outside the trigger lists (subtitle burn-in and the like).
	AssumeWorstOnMissingReasons bool

	WhitelistedUsers []string

	VideoTriggerReasons []string
	AudioTriggerReasons []string

	// KillStreams false = dry run: decisions are computed and logged but no
	// message or stop command is ever sent.
	KillStreams bool

	Message Message
}

// IsWhitelisted reports whether the user is exempt from termination.
// Comparison is case-insensitive.
func (p Policy) IsWhitelisted(userName string) bool {
	for _, w := range p.WhitelistedUsers {
		if strings.EqualFold(w, userName) {
			return true
		}
	}
	return false
}

// IsStrmSource reports whether the media is served through a .strm
// indirection file, either by file extension or by container.
func IsStrmSource(filePath, container string) bool {
	if strings.HasSuffix(strings.ToLower(filePath), ".strm") {
		return true
	}
	return strings.EqualFold(container, "strm")
}

// Decision is the engine's verdict for one session.
type Decision struct {
	Terminate bool
	// Reason explains the termination in human terms; it feeds both the
	// audit log and the message shown to the user. Empty on skip.
	Reason string
}
