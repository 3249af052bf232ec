package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourKPolicy() Policy {
	return Policy{
		MinWidth:                    3840,
		MinHeight:                   2160,
		CheckAudio:                  true,
		AssumeWorstOnMissingReasons: true,
		VideoTriggerReasons:         DefaultVideoTriggerReasons,
		AudioTriggerReasons:         DefaultAudioTriggerReasons,
	}
}

func videoSnapshot() Snapshot {
	return Snapshot{
		SessionID:        "s1",
		UserName:         "alice",
		ClientName:       "TV App",
		PlayMethod:       PlayMethodTranscode,
		MediaType:        MediaTypeVideo,
		SourceWidth:      3840,
		SourceHeight:     2160,
		SourceVideoRange: "SDR",
		HasTranscodeInfo: true,
		TranscodeReasons: []string{"VideoCodecNotSupported"},
	}
}

func TestEvaluateSkipsNonTranscodePlayMethods(t *testing.T) {
	pol := fourKPolicy()
	for _, method := range []PlayMethod{PlayMethodDirectPlay, PlayMethodDirectStream} {
		snap := videoSnapshot()
		snap.PlayMethod = method
		dec := Evaluate(snap, pol)
		assert.False(t, dec.Terminate, "play method %s must never terminate", method)
	}
}

func TestEvaluateSkipsWhitelistedUsersAnyCase(t *testing.T) {
	pol := fourKPolicy()
	pol.WhitelistedUsers = []string{"Alice", "bob"}

	for _, name := range []string{"alice", "ALICE", "Alice", "BOB"} {
		snap := videoSnapshot()
		snap.UserName = name
		assert.False(t, Evaluate(snap, pol).Terminate, "whitelisted user %q must be skipped", name)
	}

	// Same session with a non-whitelisted user does terminate.
	snap := videoSnapshot()
	snap.UserName = "mallory"
	assert.True(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateSkipsStrmFiles(t *testing.T) {
	pol := fourKPolicy()
	pol.IgnoreStrmFiles = true

	byPath := videoSnapshot()
	byPath.FilePath = "/media/movies/remote.STRM"
	assert.False(t, Evaluate(byPath, pol).Terminate)

	byContainer := videoSnapshot()
	byContainer.Container = "strm"
	assert.False(t, Evaluate(byContainer, pol).Terminate)

	// With the toggle off the same session terminates.
	pol.IgnoreStrmFiles = false
	assert.True(t, Evaluate(byPath, pol).Terminate)
}

func TestEvaluateResolutionThresholdIsInclusiveAndOr(t *testing.T) {
	pol := fourKPolicy()

	exact := videoSnapshot()
	assert.True(t, Evaluate(exact, pol).Terminate, "width == min_width must pass the gate")

	portrait := videoSnapshot()
	portrait.SourceWidth = 2160
	portrait.SourceHeight = 3840
	assert.True(t, Evaluate(portrait, pol).Terminate, "height alone must satisfy the gate")

	below := videoSnapshot()
	below.SourceWidth = 1920
	below.SourceHeight = 1080
	assert.False(t, Evaluate(below, pol).Terminate, "below threshold must skip even with trigger reasons")
}

func TestEvaluateAllPolicyMatchesEverything(t *testing.T) {
	pol := fourKPolicy()
	pol.MinWidth = 0
	pol.MinHeight = 0

	snap := videoSnapshot()
	snap.SourceWidth = 1280
	snap.SourceHeight = 720
	assert.True(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateUnresolvedSourceSkipsUnderNonzeroThreshold(t *testing.T) {
	pol := fourKPolicy()
	snap := videoSnapshot()
	snap.SourceWidth = 0
	snap.SourceHeight = 0
	snap.TranscodeReasons = nil // would otherwise hit the fail-safe
	assert.False(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateHDRToneMappingOverridesContainerException(t *testing.T) {
	pol := fourKPolicy()
	pol.AllowContainerChanges = true
	pol.VideoTriggerReasons = nil // override must not depend on the trigger list

	snap := videoSnapshot()
	snap.SourceVideoRange = "HDR10"
	snap.TranscodeReasons = []string{"VideoRangeNotSupported"}

	dec := Evaluate(snap, pol)
	require.True(t, dec.Terminate)
	assert.Contains(t, dec.Reason, "tone-mapping")
}

func TestEvaluateContainerOnlyReasonFilteredWhenAllowed(t *testing.T) {
	pol := fourKPolicy()
	pol.AllowContainerChanges = true

	snap := videoSnapshot()
	snap.TranscodeReasons = []string{"ContainerNotSupported"}
	assert.False(t, Evaluate(snap, pol).Terminate)

	// Without the exception the same reason terminates.
	pol.AllowContainerChanges = false
	assert.True(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateVideoFailSafeOnEmptyReasons(t *testing.T) {
	pol := fourKPolicy()

	snap := videoSnapshot()
	snap.TranscodeReasons = nil
	snap.HasTranscodeInfo = true
	assert.True(t, Evaluate(snap, pol).Terminate, "present transcode info with empty reasons assumes the worst")

	// Absent transcoding-info block is a different state: nothing to go on.
	snap.HasTranscodeInfo = false
	assert.False(t, Evaluate(snap, pol).Terminate)

	// The fail-safe is an explicit policy knob.
	snap.HasTranscodeInfo = true
	pol.AssumeWorstOnMissingReasons = false
	assert.False(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateAudioRules(t *testing.T) {
	pol := fourKPolicy()

	snap := Snapshot{
		SessionID:           "a1",
		UserName:            "carol",
		ClientName:          "Phone",
		PlayMethod:          PlayMethodTranscode,
		MediaType:           MediaTypeAudio,
		SourceCodec:         "flac",
		SourceAudioChannels: 2,
		SourceSampleRate:    44100,
		HasTranscodeInfo:    true,
		TranscodeReasons:    []string{"AudioCodecNotSupported"},
	}

	dec := Evaluate(snap, pol)
	require.True(t, dec.Terminate)
	assert.Contains(t, dec.Reason, "AudioCodecNotSupported")

	// Feature disabled: skip even with trigger reasons present.
	pol.CheckAudio = false
	assert.False(t, Evaluate(snap, pol).Terminate)
	pol.CheckAudio = true

	// Fail-safe fires without any resolution gate.
	snap.TranscodeReasons = nil
	assert.True(t, Evaluate(snap, pol).Terminate)

	// Non-trigger reason skips.
	snap.TranscodeReasons = []string{"SubtitleCodecNotSupported"}
	assert.False(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateOtherMediaTypesSkip(t *testing.T) {
	pol := fourKPolicy()
	snap := videoSnapshot()
	snap.MediaType = "Photo"
	assert.False(t, Evaluate(snap, pol).Terminate)
}

func TestEvaluateTerminationReasonText(t *testing.T) {
	pol := fourKPolicy()
	dec := Evaluate(videoSnapshot(), pol)
	require.True(t, dec.Terminate)
	assert.Contains(t, dec.Reason, "3840x2160")
	assert.Contains(t, dec.Reason, "alice")
	assert.Contains(t, dec.Reason, "VideoCodecNotSupported")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	pol := fourKPolicy()
	snap := videoSnapshot()

	first := Evaluate(snap, pol)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(snap, pol))
	}
}
