package usecases

import "errors"

// ErrConnectionTimeout is returned when a voice connection does not become
// ready within the configured deadline.
var ErrConnectionTimeout = errors.New("voice connection timed out")

// ErrConnectionRejected is returned when the gateway refuses a voice
// connection attempt outright.
var ErrConnectionRejected = errors.New("voice connection rejected")

// ErrRetriesExhausted is returned when every connection attempt, including
// retries, has failed.
var ErrRetriesExhausted = errors.New("voice connection retries exhausted")

// ErrNotConnected is returned when an operation requires an established
// voice connection and there is none.
var ErrNotConnected = errors.New("not connected to a voice channel")

// ErrSynthesisFailure is returned when speech synthesis fails or produces
// no audio.
var ErrSynthesisFailure = errors.New("speech synthesis failed")

// ErrRateLimited is returned when narration requests for a guild arrive
// faster than the configured minimum interval.
var ErrRateLimited = errors.New("narration requests arriving too quickly")

// ErrEmptyInput is returned when the requested text contains nothing
// speakable once sanitized.
var ErrEmptyInput = errors.New("no speakable text after sanitization")

// ErrResourceBuildFailure is returned when audio could not be converted
// into a playable resource.
var ErrResourceBuildFailure = errors.New("failed to build audio resource")

// ErrUnknownSound is returned when a requested sound clip is not present in
// the library.
var ErrUnknownSound = errors.New("unknown sound")
