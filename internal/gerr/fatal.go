package gerr

import "errors"

// Fatal reports whether err should short-circuit a gateway request into a
// signed no-op action with a diagnostic reason, rather than being retried
// or surfaced as a partial result. Transient channel errors (rate limits,
// connection failures) are not fatal: the channel adapter is expected to
// retry those on its own.
func Fatal(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrSkillNotFound),
		errors.Is(err, ErrVerificationFailed),
		errors.Is(err, ErrSkillExecutionFailed),
		errors.Is(err, ErrInvalidGraph),
		errors.Is(err, ErrCompositionError),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrMissingKeypair),
		errors.Is(err, ErrInvalidMessage):
		return true
	}

	var (
		channelNotFound          *ChannelNotFound
		skillNotFound            *SkillNotFound
		routerErr                *RouterError
		vmErr                    *VMError
		invalidConfig            *InvalidConfig
		executionErr             *ExecutionError
		unsafeOp                 *UnsafeOperation
		invalidSessionState      *InvalidSessionState
		invalidTrace             *InvalidTrace
		confidenceBelowThreshold *ConfidenceBelowThreshold
		keyGenFailed             *KeyGenerationFailed
		signingFailed            *SigningFailed
		verificationFailed       *ProofVerificationFailed
	)
	switch {
	case errors.As(err, &channelNotFound),
		errors.As(err, &skillNotFound),
		errors.As(err, &routerErr),
		errors.As(err, &vmErr),
		errors.As(err, &invalidConfig),
		errors.As(err, &executionErr),
		errors.As(err, &unsafeOp),
		errors.As(err, &invalidSessionState),
		errors.As(err, &invalidTrace),
		errors.As(err, &confidenceBelowThreshold),
		errors.As(err, &keyGenFailed),
		errors.As(err, &signingFailed),
		errors.As(err, &verificationFailed):
		return true
	}

	return false
}
