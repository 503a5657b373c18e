package httpclient

// retryBudget tracks attempts consumed against the policy's total. It is
// created fresh for every execution and never shared; the executor checks
// hasRemaining before issuing an attempt and consume is called exactly once
// per attempt, after classification.
type retryBudget struct {
	maxAttempts  int
	attemptsMade int
}

func newRetryBudget(maxAttempts int) *retryBudget {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryBudget{maxAttempts: maxAttempts}
}

func (b *retryBudget) hasRemaining() bool {
	return b.attemptsMade < b.maxAttempts
}

// consume records one completed attempt. attemptsMade never exceeds
// maxAttempts.
func (b *retryBudget) consume() {
	if b.attemptsMade < b.maxAttempts {
		b.attemptsMade++
	}
}
