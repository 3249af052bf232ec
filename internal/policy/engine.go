package policy

import (
	"fmt"
	"strings"
)

// Evaluate decides whether a session should be terminated. It is a pure
// function of the snapshot and the policy: no I/O, no state, same inputs
// always produce the same decision.
//
// Rules are checked in order; the first terminal outcome wins:
//  1. whitelisted user          -> skip
//  2. strm pass-through file    -> skip (when ignore_strm_files is set)
//  3. not transcoding           -> skip
//  4. audio rules               -> terminate / skip
//  5. video rules               -> terminate / skip
//  6. anything else             -> skip
func Evaluate(snap Snapshot, pol Policy) Decision {
	if pol.IsWhitelisted(snap.UserName) {
		return Decision{}
	}

	if pol.IgnoreStrmFiles && IsStrmSource(snap.FilePath, snap.Container) {
		return Decision{}
	}

	if snap.PlayMethod != PlayMethodTranscode {
		return Decision{}
	}

	switch snap.MediaType {
	case MediaTypeAudio:
		return evaluateAudio(snap, pol)
	case MediaTypeVideo:
		return evaluateVideo(snap, pol)
	default:
		return Decision{}
	}
}

func evaluateAudio(snap Snapshot, pol Policy) Decision {
	if !pol.CheckAudio {
		return Decision{}
	}

	// Fail-safe: the server admits it is transcoding but won't say why.
	// Audio has no resolution gate, so this fires unconditionally.
	if snap.HasTranscodeInfo && len(snap.TranscodeReasons) == 0 && pol.AssumeWorstOnMissingReasons {
		return Decision{
			Terminate: true,
			Reason: fmt.Sprintf("audio transcode with no reported reasons for user %q on %q (codec %s, %dch)",
				snap.UserName, snap.ClientName, orUnknown(snap.SourceCodec), snap.SourceAudioChannels),
		}
	}

	if hit := firstMatch(snap.TranscodeReasons, pol.AudioTriggerReasons); hit != "" {
		return Decision{
			Terminate: true,
			Reason: fmt.Sprintf("audio transcode (%s) for user %q on %q (codec %s, %dch, %dHz)",
				hit, snap.UserName, snap.ClientName,
				orUnknown(snap.SourceCodec), snap.SourceAudioChannels, snap.SourceSampleRate),
		}
	}

	return Decision{}
}

func evaluateVideo(snap Snapshot, pol Policy) Decision {
	// Resolution gate first. OR on width/height so oddly shaped or portrait
	// sources still match; an unresolved source (0x0) never meets a
	// nonzero threshold and defaults to skip.
	if snap.SourceWidth < pol.MinWidth && snap.SourceHeight < pol.MinHeight {
		return Decision{}
	}

	// HDR tone-mapping is always CPU-intensive, so an HDR source being
	// transcoded for a range reason terminates immediately. This outranks
	// the container-change exception.
	if isHDR(snap.SourceVideoRange) && containsRangeReason(snap.TranscodeReasons) {
		return Decision{
			Terminate: true,
			Reason: fmt.Sprintf("tone-mapping %s %dx%d source for user %q on %q, reasons: %v",
				snap.SourceVideoRange, snap.SourceWidth, snap.SourceHeight,
				snap.UserName, snap.ClientName, snap.TranscodeReasons),
		}
	}

	// Fail-safe, same rationale as audio.
	if snap.HasTranscodeInfo && len(snap.TranscodeReasons) == 0 && pol.AssumeWorstOnMissingReasons {
		return Decision{
			Terminate: true,
			Reason: fmt.Sprintf("video transcode of %dx%d source with no reported reasons for user %q on %q",
				snap.SourceWidth, snap.SourceHeight, snap.UserName, snap.ClientName),
		}
	}

	reasons := snap.TranscodeReasons
	if pol.AllowContainerChanges {
		reasons = withoutContainerReasons(reasons)
	}

	if hit := firstMatch(reasons, pol.VideoTriggerReasons); hit != "" {
		return Decision{
			Terminate: true,
			Reason: fmt.Sprintf("video transcode (%s) of %dx%d source for user %q on %q, reasons: %v",
				hit, snap.SourceWidth, snap.SourceHeight,
				snap.UserName, snap.ClientName, snap.TranscodeReasons),
		}
	}

	return Decision{}
}

func isHDR(videoRange string) bool {
	return videoRange != "" && !strings.EqualFold(videoRange, VideoRangeSDR)
}

func containsRangeReason(reasons []string) bool {
	for _, r := range reasons {
		if r == ReasonVideoRangeNotSupported || r == ReasonVideoRangeTypeNotSupported {
			return true
		}
	}
	return false
}

// withoutContainerReasons drops the remux-only reason. Bitrate-limit reasons
// stay, since those force an actual re-encode.
func withoutContainerReasons(reasons []string) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r == ReasonContainerNotSupported {
			continue
		}
		out = append(out, r)
	}
	return out
}

// firstMatch returns the first reason that appears in the trigger set,
// or "" when none do.
func firstMatch(reasons, triggers []string) string {
	for _, r := range reasons {
		for _, t := range triggers {
			if r == t {
				return r
			}
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
