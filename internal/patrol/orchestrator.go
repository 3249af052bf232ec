package patrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"transcode-patrol/internal/mediaserver"
	"transcode-patrol/internal/policy"
)

// ErrMissingCredentials marks a server whose API key is absent or still the
// placeholder from an example config.
var ErrMissingCredentials = errors.New("missing or placeholder API key")

// CycleResult summarizes one server's polling cycle. A non-nil Err means the
// whole server was skipped (bad credentials, failed session fetch, or a
// panic); per-session failures only reduce the counters.
type CycleResult struct {
	Server     string
	Sessions   int
	Evaluated  int
	Terminated int
	DryRuns    int
	Err        error
}

// ServerPatrol drives one media server through a polling cycle: fetch
// sessions, resolve sources, evaluate the policy, act on decisions. Every
// session is handled independently, so one bad session never blocks the rest.
type ServerPatrol struct {
	config   mediaserver.ServerConfig
	api      ServerAPI
	resolver *SourceResolver
	executor *ActionExecutor
	timeout  time.Duration
	log      zerolog.Logger
}

// NewServerPatrol wires a patrol for one configured server.
func NewServerPatrol(cfg mediaserver.ServerConfig, api ServerAPI, timeout time.Duration, log zerolog.Logger) *ServerPatrol {
	serverLog := log.With().Str("server", cfg.Name).Logger()
	return &ServerPatrol{
		config:   cfg,
		api:      api,
		resolver: NewSourceResolver(api, timeout, serverLog),
		executor: NewActionExecutor(api, timeout, serverLog),
		timeout:  timeout,
		log:      serverLog,
	}
}

// PollOnce runs one full cycle against this server. It never lets a failure
// escape to the scheduler: errors come back inside the result, and anything
// unexpected is recovered at this boundary.
func (s *ServerPatrol) PollOnce(ctx context.Context, pol policy.Policy) (result CycleResult) {
	result.Server = s.config.Name

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic while polling server %s: %v", s.config.Name, r)
			s.log.Error().Str("panic", fmt.Sprint(r)).Msg("recovered panic during server poll")
		}
	}()

	if !s.config.HasCredentials() {
		s.log.Warn().Msg("server has no usable API key, skipping this cycle")
		result.Err = ErrMissingCredentials
		return result
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	sessions, err := s.api.Sessions(fetchCtx)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch sessions")
		result.Err = err
		return result
	}

	result.Sessions = len(sessions)
	if len(sessions) == 0 {
		s.log.Debug().Msg("no active sessions")
		return result
	}

	for _, sess := range sessions {
		// Idle sessions and malformed entries have nothing to evaluate.
		if sess.ID == "" || sess.NowPlayingItem == nil {
			continue
		}

		snap := s.buildSnapshot(ctx, sess, pol)
		dec := policy.Evaluate(snap, pol)
		result.Evaluated++

		if !dec.Terminate {
			s.log.Debug().
				Str("session_id", snap.SessionID).
				Str("user", snap.UserName).
				Str("play_method", string(snap.PlayMethod)).
				Msg("session within policy")
			continue
		}

		s.log.Info().
			Str("session_id", snap.SessionID).
			Str("user", snap.UserName).
			Str("client", snap.ClientName).
			Str("reason", dec.Reason).
			Msg("session violates transcode policy")

		execResult, err := s.executor.Execute(ctx, sess.ID, dec, pol)
		switch {
		case err != nil:
			// Already logged by the executor; move on to the next session.
		case execResult.DryRun:
			result.DryRuns++
		case execResult.Stopped:
			result.Terminated++
		}
	}

	return result
}

// buildSnapshot normalizes one server session into the engine's input. The
// source resolver is only consulted for video sessions that can actually
// reach the resolution gate; everything else is served from the session
// object directly.
func (s *ServerPatrol) buildSnapshot(ctx context.Context, sess mediaserver.Session, pol policy.Policy) policy.Snapshot {
	item := sess.NowPlayingItem

	snap := policy.Snapshot{
		SessionID:  sess.ID,
		UserName:   sess.UserName,
		ClientName: sess.Client,
		PlayMethod: policy.PlayMethod(sess.PlayState.PlayMethod),
		MediaType:  policy.MediaType(item.MediaType),
		Container:  item.Container,
		FilePath:   item.Path,
	}

	if sess.TranscodingInfo != nil {
		snap.HasTranscodeInfo = true
		snap.TranscodeReasons = sess.TranscodingInfo.TranscodeReasons
	}

	var src SourceInfo
	if s.needsSourceLookup(snap, pol) {
		src = s.resolver.Resolve(ctx, sess)
		if sess.TranscodingInfo != nil {
			s.log.Debug().
				Str("session_id", sess.ID).
				Int("source_width", src.Width).
				Int("source_height", src.Height).
				Int("target_width", sess.TranscodingInfo.Width).
				Int("target_height", sess.TranscodingInfo.Height).
				Bool("resolved", src.Resolved).
				Msg("resolved source media info")
		}
	} else {
		src, _ = sourceFromStreams(item.MediaStreams, item.MediaType)
	}

	snap.SourceWidth = src.Width
	snap.SourceHeight = src.Height
	snap.SourceVideoRange = src.VideoRange
	snap.SourceCodec = src.Codec
	snap.SourceAudioChannels = src.Channels
	snap.SourceSampleRate = src.SampleRate

	return snap
}

// needsSourceLookup mirrors the engine's early skips so we never spend a
// metadata request on a session that can only be skipped anyway.
func (s *ServerPatrol) needsSourceLookup(snap policy.Snapshot, pol policy.Policy) bool {
	if snap.MediaType != policy.MediaTypeVideo || snap.PlayMethod != policy.PlayMethodTranscode {
		return false
	}
	if pol.IsWhitelisted(snap.UserName) {
		return false
	}
	if pol.IgnoreStrmFiles && policy.IsStrmSource(snap.FilePath, snap.Container) {
		return false
	}
	return true
}
