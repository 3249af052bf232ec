package patrol

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"transcode-patrol/internal/policy"
)

// ExecutionResult reports what the executor actually did for one decision.
type ExecutionResult struct {
	DryRun      bool
	MessageSent bool
	Stopped     bool
}

// ActionExecutor carries out terminate decisions: message the user, then stop
// the stream. Messaging is best-effort; the stop command is the part that
// matters.
type ActionExecutor struct {
	api     ServerAPI
	timeout time.Duration
	log     zerolog.Logger
}

// NewActionExecutor builds an executor for one server.
func NewActionExecutor(api ServerAPI, timeout time.Duration, log zerolog.Logger) *ActionExecutor {
	return &ActionExecutor{api: api, timeout: timeout, log: log}
}

// Execute acts on a decision. A skip decision is a no-op. With kill disabled
// it only records what would have happened, so a new policy can be watched
// safely before it is armed. The returned error reflects the stop command
// only; a failed message never blocks the stop attempt.
func (e *ActionExecutor) Execute(ctx context.Context, sessionID string, dec policy.Decision, pol policy.Policy) (ExecutionResult, error) {
	if !dec.Terminate {
		return ExecutionResult{}, nil
	}

	if !pol.KillStreams {
		e.log.Info().
			Str("session_id", sessionID).
			Str("reason", dec.Reason).
			Msg("dry run: would terminate session")
		return ExecutionResult{DryRun: true}, nil
	}

	result := ExecutionResult{}

	msgCtx, cancelMsg := context.WithTimeout(ctx, e.timeout)
	err := e.api.SendMessage(msgCtx, sessionID, pol.Message.Header, pol.Message.Body, pol.Message.DisplayTimeout)
	cancelMsg()
	if err != nil {
		e.log.Warn().Err(err).
			Str("session_id", sessionID).
			Msg("failed to deliver termination message, stopping playback anyway")
	} else {
		result.MessageSent = true
	}

	stopCtx, cancelStop := context.WithTimeout(ctx, e.timeout)
	err = e.api.StopPlayback(stopCtx, sessionID)
	cancelStop()
	if err != nil {
		e.log.Error().Err(err).
			Str("session_id", sessionID).
			Msg("failed to stop playback")
		return result, err
	}

	result.Stopped = true
	e.log.Info().
		Str("session_id", sessionID).
		Str("reason", dec.Reason).
		Msg("session terminated")
	return result, nil
}
