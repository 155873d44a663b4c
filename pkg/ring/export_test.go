package ring

// Export internal hooks for testing.
// This file is only compiled during tests.

// Write steps, in the order [Writer.Write] performs them.
const (
	StepPayloadWritten  = int(stepPayloadWritten)
	StepPassToggled     = int(stepPassToggled)
	StepNextAnnounced   = int(stepNextAnnounced)
	StepCurrentReleased = int(stepCurrentReleased)
)

// SetWriteStepHookForTesting installs fn to run after every step of Write.
func SetWriteStepHookForTesting(w *Writer, fn func(step int)) {
	if fn == nil {
		w.stepHook = nil

		return
	}

	w.stepHook = func(s writeStep) { fn(int(s)) }
}

// SetAfterPayloadHookForTesting installs fn to run between the payload read
// and the control-bit checks of TryRead.
func SetAfterPayloadHookForTesting(r *Reader, fn func()) {
	r.afterPayload = fn
}
